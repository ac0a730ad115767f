// Package media implements Outbound Media Prep: encrypting a raw media
// buffer, uploading the encrypted body, and composing the outer message
// that carries it (spec.md §4.6).
package media

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/veltrix/wacore/internal/core"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const mediaKeySize = 32

// hkdfInfo is the media-type-specific context string used as HKDF's info
// parameter (spec.md §4.6 step 2).
var hkdfInfo = map[string]string{
	"image":    "WhatsApp Image Keys",
	"video":    "WhatsApp Video Keys",
	"audio":    "WhatsApp Audio Keys",
	"document": "WhatsApp Document Keys",
	"sticker":  "WhatsApp Image Keys",
}

// uploadPath maps a media type to the path component of its upload URL.
var uploadPath = map[string]string{
	"image":    "mms/image",
	"video":    "mms/video",
	"audio":    "mms/audio",
	"document": "mms/document",
	"sticker":  "mms/sticker",
}

// Options carries the per-call refinements to media preparation.
type Options struct {
	Mimetype  string
	Caption   string
	Thumbnail []byte
	Timestamp time.Time
	Quoted    *core.QuotedMessage
}

// Preparer turns a raw buffer into a ready-to-relay outbound message.
type Preparer struct {
	negotiator core.MediaUploadNegotiator
	thumbnails core.ThumbnailGenerator
	httpClient *http.Client
	localJID   string
	logger     *zap.Logger
}

// New creates a Preparer. thumbnails may be nil, in which case no
// thumbnail is generated unless the caller supplies one in Options.
func New(negotiator core.MediaUploadNegotiator, thumbnails core.ThumbnailGenerator, localJID string, logger *zap.Logger) *Preparer {
	return &Preparer{
		negotiator: negotiator,
		thumbnails: thumbnails,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		localJID:   localJID,
		logger:     logger,
	}
}

// Prepare encrypts, uploads, and packages buf for the given mediaType
// (image|video|audio|document|sticker).
func (p *Preparer) Prepare(ctx context.Context, buf []byte, mediaType string, opts Options) (*core.WebMessage, error) {
	if mediaType == "document" && opts.Mimetype == "" {
		return nil, fmt.Errorf("%w: document media requires an explicit mimetype", core.ErrInvalidCallerArg)
	}
	if mediaType == "sticker" && opts.Caption != "" {
		return nil, fmt.Errorf("%w: sticker media forbids a caption", core.ErrInvalidCallerArg)
	}

	gifPlayback := false
	if opts.Mimetype == "image/gif" {
		opts.Mimetype = "video/mp4"
		gifPlayback = true
		mediaType = "video"
	}

	mediaKey := make([]byte, mediaKeySize)
	if _, err := rand.Read(mediaKey); err != nil {
		return nil, fmt.Errorf("generate media key: %w", err)
	}

	iv, cipherKey, macKey, _, err := deriveKeys(mediaKey, mediaType)
	if err != nil {
		return nil, fmt.Errorf("derive media keys: %w", err)
	}

	enc, err := encryptCBC(cipherKey, iv, buf)
	if err != nil {
		return nil, fmt.Errorf("encrypt media: %w", err)
	}
	mac := hmacTruncated(macKey, append(append([]byte{}, iv...), enc...))
	body := append(enc, mac...)

	fileSHA256 := sha256.Sum256(buf)
	fileEncSHA256 := sha256.Sum256(body)

	uploadURL, err := p.upload(ctx, mediaType, body, fileEncSHA256[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMediaUploadFailed, err)
	}

	media := &core.MediaContent{
		MediaType:     mediaType,
		URL:           uploadURL,
		MediaKey:      mediaKey,
		Mimetype:      opts.Mimetype,
		FileEncSHA256: fileEncSHA256[:],
		FileSHA256:    fileSHA256[:],
		FileLength:    int64(len(buf)),
		Caption:       opts.Caption,
		JPEGThumbnail: opts.Thumbnail,
		GIFPlayback:   gifPlayback,
	}

	if opts.Thumbnail == nil && p.thumbnails != nil {
		thumb, err := p.thumbnails.Thumbnail(ctx, buf, mediaType)
		if err != nil {
			p.logger.Warn("thumbnail generation failed", zap.Error(err))
		} else {
			media.JPEGThumbnail = thumb
		}
	}

	if opts.Quoted != nil {
		media.ContextInfo = &core.ContextInfo{
			Participant:   opts.Quoted.Key.Participant,
			StanzaID:      opts.Quoted.Key.ID,
			QuotedMessage: opts.Quoted.Message,
		}
		if isGroupJID(opts.Quoted.Key.RemoteJID) {
			media.ContextInfo.RemoteJID = opts.Quoted.Key.RemoteJID
		}
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &core.WebMessage{
		Key: core.MessageKey{
			RemoteJID: "",
			ID:        uuid.NewString(),
			FromMe:    true,
		},
		MessageTimestamp: ts.Unix(),
		Message: &core.MessageContent{
			Kind:  core.ContentMedia,
			Media: media,
		},
	}, nil
}

// deriveKeys runs HKDF-SHA256 over mediaKey with the media-type-specific
// info string, returning {iv, cipherKey, macKey, refKey}.
func deriveKeys(mediaKey []byte, mediaType string) (iv, cipherKey, macKey, refKey []byte, err error) {
	info, ok := hkdfInfo[mediaType]
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("%w: unknown media type %q", core.ErrInvalidCallerArg, mediaType)
	}

	r := hkdf.New(sha256.New, mediaKey, nil, []byte(info))
	expanded := make([]byte, 112)
	if _, err := io.ReadFull(r, expanded); err != nil {
		return nil, nil, nil, nil, err
	}
	return expanded[0:16], expanded[16:48], expanded[48:80], expanded[80:112], nil
}

func encryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func hmacTruncated(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	sum := h.Sum(nil)
	return sum[:10]
}

func (p *Preparer) upload(ctx context.Context, mediaType string, body, fileEncSHA256 []byte) (string, error) {
	slot, err := p.negotiator.RequestUploadSlot(ctx, mediaType)
	if err != nil {
		return "", err
	}
	if len(slot.Hosts) == 0 {
		return "", fmt.Errorf("upload slot returned no hosts")
	}

	b64 := base64.RawURLEncoding.EncodeToString(fileEncSHA256)
	path := uploadPath[mediaType]

	u := fmt.Sprintf("https://%s/%s/%s?auth=%s&token=%s",
		slot.Hosts[0], path, b64, url.QueryEscape(slot.Auth), b64)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Origin", "https://web.whatsapp.com")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return parsed.URL, nil
}

func isGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}
