package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"

	"github.com/xhad/ragmodes/internal/models"
)

func loadEML(_ context.Context, path string) ([]models.RawUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return nil, err
	}

	body, err := messageBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if subject := msg.Header.Get("Subject"); subject != "" {
		b.WriteString(subject)
		b.WriteString("\n")
	}
	b.WriteString(body)

	return []models.RawUnit{{Modality: models.ModalityText, Text: strings.TrimSpace(b.String()), Source: path}}, nil
}

// messageBody prefers an HTML part, rendered to text, over a plain one.
func messageBody(contentType, encoding string, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		var html, plain string
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", err
			}
			text, err := messageBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", err
			}
			partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			switch {
			case partType == "text/html" && html == "":
				html = text
			case strings.HasPrefix(partType, "multipart/") && html == "":
				html = text
			case (partType == "text/plain" || partType == "") && plain == "":
				plain = text
			}
		}
		if html != "" {
			return html, nil
		}
		return plain, nil
	}

	data, err := io.ReadAll(decodeTransfer(encoding, r))
	if err != nil {
		return "", err
	}

	if mediaType == "text/html" {
		return htmlText(bytes.NewReader(data))
	}
	return string(data), nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}
