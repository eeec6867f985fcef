package mail

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTemplatesCode(t *testing.T) {
	tpl, err := NewTemplates("Fatec Itu")
	require.NoError(t, err)
	tpl.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	subject, body, err := tpl.Code(KindTwoFactor, "Ana", "012345", 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, SubjectTwoFactor, subject)
	require.Contains(t, body, "012345")
	require.Contains(t, body, "Ana")
	require.Contains(t, body, "15 minutes")
	require.Contains(t, body, "2026 Fatec Itu")

	subject, body, err = tpl.Code(KindReset, "Ana", "999999", 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, SubjectReset, subject)
	require.Contains(t, body, "reset your password")
}

func TestTemplatesEscapeName(t *testing.T) {
	tpl, err := NewTemplates("Fatec Itu")
	require.NoError(t, err)

	_, body, err := tpl.Code(KindTwoFactor, "<script>x</script>", "000001", 15*time.Minute)
	require.NoError(t, err)
	require.NotContains(t, body, "<script>")
}

func TestTemplatesUnknownKind(t *testing.T) {
	tpl, err := NewTemplates("Fatec Itu")
	require.NoError(t, err)

	_, _, err = tpl.Code("welcome", "Ana", "000001", time.Minute)
	require.Error(t, err)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.Send(context.Background(), "ana@fatec.sp.gov.br", SubjectReset, "<p>123456</p>"))
}
