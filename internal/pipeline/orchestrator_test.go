package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/mailhaul/mailhaul/internal/archive"
	"github.com/mailhaul/mailhaul/internal/extract"
	"github.com/mailhaul/mailhaul/internal/notify"
	"github.com/mailhaul/mailhaul/internal/upload"
)

type fakeMail struct {
	mu          sync.Mutex
	refs        []MessageRef
	parts       map[string]*extract.Part
	content     map[string][]byte
	searchErrs  []error
	searchCalls int
}

func (f *fakeMail) Search(ctx context.Context, query string, maxResults int64) ([]MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.refs, nil
}

func (f *fakeMail) FetchParts(ctx context.Context, messageID string) (*extract.Part, error) {
	root, ok := f.parts[messageID]
	if !ok {
		return nil, fmt.Errorf("no such message %s", messageID)
	}
	return root, nil
}

func (f *fakeMail) FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	data, ok := f.content[attachmentID]
	if !ok {
		return nil, fmt.Errorf("no such attachment %s", attachmentID)
	}
	return data, nil
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	delay time.Duration
}

func (f *fakeUploader) Upload(ctx context.Context, remotePath string, size int64, content io.ReaderAt) *upload.Result {
	f.mu.Lock()
	f.calls = append(f.calls, remotePath)
	err := f.fail[remotePath]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	res := &upload.Result{RemotePath: remotePath}
	if err != nil {
		res.Err = err
		return res
	}
	res.RemoteID = "item-" + remotePath
	return res
}

type fakeNotifier struct {
	mu             sync.Mutex
	calls          int
	to             string
	subject        string
	body           string
	attachmentName string
	attachment     []byte
	outcome        notify.Outcome
}

func (f *fakeNotifier) Send(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) notify.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.to, f.subject, f.body = to, subject, body
	f.attachmentName, f.attachment = attachmentName, attachment
	if f.outcome.MessageID == "" && f.outcome.Err == nil {
		f.outcome = notify.Outcome{MessageID: "sent-1", Attempts: 1}
	}
	return f.outcome
}

type fakeTokens struct {
	errs map[string]error
}

func (f *fakeTokens) FetchValidToken(ctx context.Context, provider string) (string, error) {
	if err := f.errs[provider]; err != nil {
		return "", err
	}
	return "token-" + provider, nil
}

func (f *fakeTokens) InvalidateToken(provider string) {}

func leafPart(name, attachmentID string, data []byte) *extract.Part {
	return &extract.Part{
		Filename:     name,
		MimeType:     "application/pdf",
		Disposition:  "attachment",
		AttachmentID: attachmentID,
		Data:         data,
		Size:         int64(len(data)),
	}
}

func messageTree(leaves ...*extract.Part) *extract.Part {
	children := []*extract.Part{{MimeType: "text/plain", Data: []byte("body")}}
	children = append(children, leaves...)
	return &extract.Part{MimeType: "multipart/mixed", Parts: children}
}

func newTestOrchestrator(mail MailProvider, up Uploader, n Notifier, tokens TokenProvider) *Orchestrator {
	o := New(mail, up, archive.New(nil), n, tokens, nil)
	o.fetchBackoff = 0
	return o
}

func threeMessageMail() *fakeMail {
	return &fakeMail{
		refs: []MessageRef{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}},
		parts: map[string]*extract.Part{
			"m1": messageTree(leafPart("a.pdf", "", []byte("aaaa"))),
			"m2": messageTree(leafPart("b.pdf", "", []byte("bbbb"))),
			"m3": messageTree(leafPart("c.pdf", "", []byte("cccc"))),
		},
	}
}

func TestRun_Completed(t *testing.T) {
	mail := threeMessageMail()
	up := &fakeUploader{}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, up, notifier, &fakeTokens{})

	report, err := o.Run(context.Background(), Config{
		Query:       "has:attachment",
		Recipient:   "me@example.com",
		DestFolder:  "Reports",
		ArchiveName: "reports",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 3, report.Messages)
	require.Len(t, report.Attachments, 3)
	assert.Equal(t, "a.pdf", report.Attachments[0].Filename)
	assert.Equal(t, "b.pdf", report.Attachments[1].Filename)
	assert.Equal(t, "c.pdf", report.Attachments[2].Filename)
	assert.Equal(t, "Reports/a.pdf", report.Attachments[0].RemotePath)
	assert.Equal(t, 3, report.ArchiveEntries)
	assert.Equal(t, "reports.zip", report.ArchiveName)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "Files: reports.zip", notifier.subject)
	assert.Equal(t, "reports.zip", notifier.attachmentName)
	assert.NotEmpty(t, notifier.attachment)
	assert.Contains(t, notifier.body, "[ok] a.pdf -> Reports/a.pdf")
	assert.NotEmpty(t, report.RunID)
}

func TestRun_PartialFailure(t *testing.T) {
	mail := threeMessageMail()
	permErr := errors.New("status 403: access denied")
	up := &fakeUploader{fail: map[string]error{"Attachments/b.pdf": permErr}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, up, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusPartialFailure, report.Status)
	assert.Equal(t, 2, report.Uploaded())
	assert.Equal(t, 1, report.Failed())
	require.Len(t, report.Attachments, 3)
	assert.ErrorIs(t, report.Attachments[1].Err, permErr)
	assert.Equal(t, 2, report.ArchiveEntries)
	assert.Equal(t, 1, notifier.calls)
	assert.Contains(t, notifier.body, "[failed] b.pdf")
}

func TestRun_AllAttachmentsFail(t *testing.T) {
	mail := threeMessageMail()
	up := &fakeUploader{fail: map[string]error{
		"Attachments/a.pdf": errors.New("down"),
		"Attachments/b.pdf": errors.New("down"),
		"Attachments/c.pdf": errors.New("down"),
	}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, up, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusPartialFailure, report.Status)
	assert.Equal(t, 0, report.Uploaded())
	assert.Equal(t, 0, report.ArchiveEntries)
	assert.Equal(t, 1, notifier.calls)
	assert.Empty(t, notifier.attachment)
}

func TestRun_SearchFailsWholesale(t *testing.T) {
	mail := &fakeMail{searchErrs: []error{&googleapi.Error{Code: 400, Message: "bad query"}}}
	up := &fakeUploader{}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, up, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, StageSearching, report.FailedStage)
	assert.Contains(t, report.Reason, "mailbox search")
	assert.Empty(t, report.Attachments)
	assert.Equal(t, 1, mail.searchCalls)
	assert.Zero(t, notifier.calls)
	assert.Empty(t, up.calls)
}

func TestRun_SearchTransientRetried(t *testing.T) {
	mail := threeMessageMail()
	mail.searchErrs = []error{&googleapi.Error{Code: 503}, nil}
	o := newTestOrchestrator(mail, &fakeUploader{}, nil, nil)

	report, err := o.Run(context.Background(), Config{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 2, mail.searchCalls)
}

func TestRun_SearchExhaustsRetries(t *testing.T) {
	mail := &fakeMail{searchErrs: []error{
		&googleapi.Error{Code: 503},
		&googleapi.Error{Code: 503},
		&googleapi.Error{Code: 503},
	}}
	o := newTestOrchestrator(mail, &fakeUploader{}, nil, nil)

	report, err := o.Run(context.Background(), Config{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, StageSearching, report.FailedStage)
	assert.Equal(t, 3, mail.searchCalls)
}

func TestRun_NoMessages(t *testing.T) {
	mail := &fakeMail{}
	up := &fakeUploader{}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, up, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "no messages matched the query", report.Reason)
	assert.Empty(t, up.calls)
	assert.Zero(t, notifier.calls)
}

func TestRun_NoAttachments(t *testing.T) {
	mail := &fakeMail{
		refs:  []MessageRef{{ID: "m1"}},
		parts: map[string]*extract.Part{"m1": messageTree()},
	}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, &fakeUploader{}, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "no attachments found in matched messages", report.Reason)
	assert.Zero(t, notifier.calls)
}

func TestRun_NotificationFailureFailsRun(t *testing.T) {
	mail := threeMessageMail()
	notifier := &fakeNotifier{outcome: notify.Outcome{Err: errors.New("smtp down"), Attempts: 3}}
	o := newTestOrchestrator(mail, &fakeUploader{}, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, StageNotifying, report.FailedStage)
	// Upload outcomes are still reported even though the run failed.
	assert.Equal(t, 3, report.Uploaded())
	assert.Error(t, report.NotifyErr)
}

func TestRun_NoRecipientSkipsNotification(t *testing.T) {
	mail := threeMessageMail()
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, &fakeUploader{}, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Zero(t, notifier.calls)
}

func TestRun_PreflightFailure(t *testing.T) {
	tokens := &fakeTokens{errs: map[string]error{ProviderMicrosoft: errors.New("needs reauth")}}
	mail := threeMessageMail()
	o := newTestOrchestrator(mail, &fakeUploader{}, nil, tokens)

	report, err := o.Run(context.Background(), Config{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, StageSearching, report.FailedStage)
	assert.Contains(t, report.Reason, ProviderMicrosoft)
	assert.Zero(t, mail.searchCalls)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mail := threeMessageMail()
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, &fakeUploader{}, notifier, nil)

	report, err := o.Run(ctx, Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, "cancelled", report.Reason)
	assert.Zero(t, notifier.calls)
}

func TestRun_InvalidConfig(t *testing.T) {
	o := newTestOrchestrator(&fakeMail{}, &fakeUploader{}, nil, nil)

	_, err := o.Run(context.Background(), Config{Query: "   "})
	assert.Error(t, err)

	_, err = o.Run(context.Background(), Config{Query: "q", Recipient: "not-an-address"})
	assert.Error(t, err)
}

func TestRun_CanonicalOrderUnderConcurrency(t *testing.T) {
	// Ten single-attachment messages with staggered upload latency. The
	// report must still list results in discovery order.
	refs := make([]MessageRef, 10)
	parts := make(map[string]*extract.Part, 10)
	for i := range refs {
		id := fmt.Sprintf("m%02d", i)
		refs[i] = MessageRef{ID: id}
		parts[id] = messageTree(leafPart(fmt.Sprintf("f%02d.pdf", i), "", []byte("x")))
	}
	mail := &fakeMail{refs: refs, parts: parts}
	up := &fakeUploader{delay: 5 * time.Millisecond}
	o := newTestOrchestrator(mail, up, nil, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Concurrency: 4})
	require.NoError(t, err)

	require.Len(t, report.Attachments, 10)
	for i, a := range report.Attachments {
		assert.Equal(t, fmt.Sprintf("f%02d.pdf", i), a.Filename)
	}
}

func TestRun_LazyContentFetchFailure(t *testing.T) {
	mail := &fakeMail{
		refs: []MessageRef{{ID: "m1"}},
		parts: map[string]*extract.Part{
			"m1": messageTree(
				leafPart("good.pdf", "", []byte("data")),
				leafPart("gone.pdf", "att-gone", nil),
			),
		},
	}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(mail, &fakeUploader{}, notifier, nil)

	report, err := o.Run(context.Background(), Config{Query: "q", Recipient: "me@example.com"})
	require.NoError(t, err)

	assert.Equal(t, StatusPartialFailure, report.Status)
	require.Len(t, report.Attachments, 2)
	assert.True(t, report.Attachments[0].Succeeded())
	assert.ErrorContains(t, report.Attachments[1].Err, "fetch content")
	assert.Equal(t, 1, report.ArchiveEntries)
}

func TestReport_Summary(t *testing.T) {
	r := &Report{
		Query:    "has:attachment",
		Messages: 2,
		Status:   StatusPartialFailure,
		Attachments: []AttachmentResult{
			{Filename: "a.pdf", RemotePath: "Reports/a.pdf"},
			{Filename: "b.pdf", Err: errors.New("status 403")},
		},
		ArchiveName:    "run.zip",
		ArchiveEntries: 1,
	}
	s := r.Summary()
	assert.Contains(t, s, "partial_failure")
	assert.Contains(t, s, "uploaded: 1, failed: 1")
	assert.Contains(t, s, "[ok] a.pdf -> Reports/a.pdf")
	assert.Contains(t, s, "[failed] b.pdf: status 403")
	assert.Contains(t, s, "Archive run.zip: 1 entries")
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{Query: "q"}.withDefaults()
	assert.Equal(t, int64(DefaultMaxResults), c.MaxResults)
	assert.Equal(t, DefaultConcurrency, c.Concurrency)
	assert.Equal(t, DefaultDestFolder, c.DestFolder)
	assert.Equal(t, DefaultArchiveName, c.ArchiveName)

	c = Config{Query: "q", ArchiveName: "Invoices"}.withDefaults()
	assert.Equal(t, "Invoices.zip", c.ArchiveName)
	c = Config{Query: "q", ArchiveName: "done.ZIP"}.withDefaults()
	assert.False(t, strings.HasSuffix(c.ArchiveName, ".ZIP.zip"))
}
