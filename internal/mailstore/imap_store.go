package mailstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// IMAPStore is the shared implementation behind GmailStore and
// GenericIMAPStore: both just supply a different Dialer (OAuth2/XOAUTH2 vs
// plain LOGIN) over the same append/fetch/delete mechanics. Grounded on
// the teacher's StoreSQL/StoreMemory pair (two Storage implementations
// sharing the same contract, chunk/store_sql.go + chunk/store_memory.go),
// generalized here into one shared core plus provider-specific dialers
// instead of two independent structs.
type IMAPStore struct {
	pool         *Pool
	draftsFolder string
}

// NewIMAPStore constructs a Store against draftsFolder, pooling up to
// poolSize connections built by dial.
func NewIMAPStore(poolSize int, draftsFolder string, dial Dialer) *IMAPStore {
	return &IMAPStore{
		pool:         NewPool(poolSize, dial),
		draftsFolder: draftsFolder,
	}
}

// GmailStoreConfig configures NewGmailStore, which dials and authenticates
// against Gmail's IMAP endpoint using XOAUTH2 and otherwise uses the same
// IMAPStore mechanics as the generic variant. No Gmail labels (X-GM-LABELS)
// are set on stored drafts.
type GmailStoreConfig struct {
	Username    string
	AccessToken string // OAuth2 access token
	PoolSize    int
	DraftsFolder string
}

func NewGmailStore(cfg GmailStoreConfig) *IMAPStore {
	dial := func() (*client.Client, error) {
		c, err := client.DialTLS("imap.gmail.com:993", nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
		}
		sasl := &xoauth2Client{username: cfg.Username, token: cfg.AccessToken}
		if err := c.Authenticate(sasl); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
		}
		return c, nil
	}
	draftsFolder := cfg.DraftsFolder
	if draftsFolder == "" {
		draftsFolder = "[Gmail]/Drafts"
	}
	return NewIMAPStore(cfg.PoolSize, draftsFolder, dial)
}

// GenericIMAPStoreConfig dials a plain (non-Gmail) IMAP server with
// LOGIN/PLAIN authentication, per spec.md §6's EMAIL_HOST/EMAIL_PORT/
// EMAIL_USER/EMAIL_PASSWORD/EMAIL_DRAFTS_FOLDER configuration surface.
type GenericIMAPStoreConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	PoolSize     int
	DraftsFolder string
	UseTLS       bool
}

func NewGenericIMAPStore(cfg GenericIMAPStoreConfig) *IMAPStore {
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	dial := func() (*client.Client, error) {
		var c *client.Client
		var err error
		if cfg.UseTLS {
			c, err = client.DialTLS(addr, nil)
		} else {
			c, err = client.Dial(addr)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
		}
		if err := c.Login(cfg.Username, cfg.Password); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
		}
		return c, nil
	}
	draftsFolder := cfg.DraftsFolder
	if draftsFolder == "" {
		draftsFolder = "Drafts"
	}
	return NewIMAPStore(cfg.PoolSize, draftsFolder, dial)
}

// Store implements Store. The subject encodes the chunk hash for operator
// inspection only; lookups never parse it back out (see DESIGN.md).
func (s *IMAPStore) Store(ctx context.Context, hash string, data []byte) (string, error) {
	c, err := s.pool.Borrow()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}
	broken := false
	defer func() { s.pool.Return(c, broken) }()

	if _, err := c.Select(s.draftsFolder, false); err != nil {
		broken = true
		return "", fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}

	msgID := fmt.Sprintf("<%s@objectmail>", uuid.New().String())
	body, err := buildChunkMessage(hash, msgID, data)
	if err != nil {
		return "", err
	}

	literal := bytes.NewReader(body)
	if err := withDeadline(ctx, func() error {
		return c.Append(s.draftsFolder, []string{imap.DraftFlag}, time.Now(), literal)
	}); err != nil {
		broken = true
		if isQuotaErr(err) {
			return "", fmt.Errorf("%w: %v", ErrMailStoreQuotaExceeded, err)
		}
		return "", fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}

	return msgID, nil
}

// Fetch implements Store.
func (s *IMAPStore) Fetch(ctx context.Context, mailMessageID string) ([]byte, error) {
	c, err := s.pool.Borrow()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}
	broken := false
	defer func() { s.pool.Return(c, broken) }()

	if _, err := c.Select(s.draftsFolder, true); err != nil {
		broken = true
		return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}

	uid, err := s.findUID(c, mailMessageID)
	if err != nil {
		return nil, err
	}
	if uid == 0 {
		return nil, ErrChunkMissing
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raw []byte
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		b, err := io.ReadAll(r)
		if err != nil {
			broken = true
			return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
		}
		raw = b
	}
	if err := <-done; err != nil {
		broken = true
		return nil, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}
	if raw == nil {
		return nil, ErrChunkMissing
	}

	data, err := extractAttachment(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkMissing, err)
	}
	return data, nil
}

// Delete implements Store. Idempotent: a missing message is not an error.
func (s *IMAPStore) Delete(ctx context.Context, mailMessageID string) error {
	c, err := s.pool.Borrow()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}
	broken := false
	defer func() { s.pool.Return(c, broken) }()

	if _, err := c.Select(s.draftsFolder, false); err != nil {
		broken = true
		return fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}

	uid, err := s.findUID(c, mailMessageID)
	if err != nil {
		return err
	}
	if uid == 0 {
		return nil // already absent: idempotent per spec
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := c.UidStore(seqset, item, flags, nil); err != nil {
		broken = true
		return fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}
	if err := c.Expunge(nil); err != nil {
		broken = true
		return fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}
	return nil
}

// findUID locates the message by its Message-Id header, since the spec's
// mail_message_id identifier must survive UID renumbering across
// reconnects. Returns 0 if no match.
func (s *IMAPStore) findUID(c *client.Client, mailMessageID string) (uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", mailMessageID)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMailStoreUnavailable, err)
	}
	if len(uids) == 0 {
		return 0, nil
	}
	return uids[0], nil
}

// buildChunkMessage constructs a MIME message with the given Message-Id
// whose sole attachment is data, base64-transfer-encoded. Built with
// go-message/mail, generalizing the teacher's zlib-compressed chunk
// buffering (chunk/buffer.go) from an internal storage encoding to a
// wire-format MIME encoding appropriate for an IMAP draft.
func buildChunkMessage(hash, msgID string, data []byte) ([]byte, error) {
	var h mail.Header
	h.Set("Message-Id", msgID)
	h.Set("Subject", "objectmail:"+hash)
	h.SetDate(time.Now())

	var buf bytes.Buffer
	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	var ah mail.AttachmentHeader
	ah.Set("Content-Transfer-Encoding", "base64")
	ah.SetContentType("application/octet-stream", nil)
	ah.SetFilename(hash + ".bin")

	aw, err := w.CreateAttachment(ah)
	if err != nil {
		return nil, err
	}
	if _, err := aw.Write(data); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// extractAttachment parses raw and returns the decoded bytes of its first
// attachment part.
func extractAttachment(raw []byte) ([]byte, error) {
	r, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch part.Header.(type) {
		case *mail.AttachmentHeader:
			return io.ReadAll(part.Body)
		}
	}
	return nil, fmt.Errorf("message has no attachment part")
}

func withDeadline(ctx context.Context, fn func() error) error {
	if ctx == nil {
		return fn()
	}
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isQuotaErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "over limit")
}
