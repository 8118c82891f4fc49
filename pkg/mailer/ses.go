package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/finlink/reports-api/pkg/config"
)

// Attachment is a file attached to an outgoing report email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type sesAPI interface {
	SendRawEmail(ctx context.Context, input *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// Mailer delivers report emails through SES. Raw MIME assembly is required
// because the simple SendEmail API cannot carry attachments.
type Mailer struct {
	client  sesAPI
	sender  string
	replyTo string
	logger  *zap.Logger
}

// New builds a Mailer backed by the default AWS credential chain.
func New(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (*Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Mailer{
		client:  ses.NewFromConfig(awsCfg),
		sender:  cfg.Sender,
		replyTo: cfg.ReplyTo,
		logger:  logger,
	}, nil
}

// NewWithClient wires a preconstructed SES client (used by tests).
func NewWithClient(client sesAPI, sender, replyTo string, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{client: client, sender: sender, replyTo: replyTo, logger: logger}
}

// Send delivers an HTML email with an optional attachment to the recipients.
func (m *Mailer) Send(ctx context.Context, recipients []string, subject, bodyHTML string, attachment *Attachment) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}
	if m.sender == "" {
		return fmt.Errorf("sender address not configured")
	}

	raw, err := m.buildRawMessage(recipients, subject, bodyHTML, attachment)
	if err != nil {
		return err
	}

	_, err = m.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(m.sender),
		Destinations: recipients,
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	m.logger.Sugar().Infow("report email sent", "recipients", len(recipients), "subject", subject)
	return nil
}

func (m *Mailer) buildRawMessage(recipients []string, subject, bodyHTML string, attachment *Attachment) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	fmt.Fprintf(buf, "From: %s\r\n", m.sender)
	fmt.Fprintf(buf, "To: %s\r\n", strings.Join(recipients, ", "))
	if m.replyTo != "" {
		fmt.Fprintf(buf, "Reply-To: %s\r\n", m.replyTo)
	}
	fmt.Fprintf(buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/html; charset=UTF-8")
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := bodyPart.Write([]byte(bodyHTML)); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}

	if attachment != nil {
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", contentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Filename))
		attPart, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, fmt.Errorf("create attachment part: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(attachment.Data)
		// 76-char lines per RFC 2045.
		for len(encoded) > 0 {
			n := 76
			if n > len(encoded) {
				n = len(encoded)
			}
			if _, err := attPart.Write([]byte(encoded[:n] + "\r\n")); err != nil {
				return nil, fmt.Errorf("write attachment part: %w", err)
			}
			encoded = encoded[n:]
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize mime message: %w", err)
	}
	return buf.Bytes(), nil
}
