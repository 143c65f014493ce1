package blob

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = New(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := New(Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "reports"})
	require.NoError(t, err)
	assert.Equal(t, "reports", s.bucket)
}

func TestPresignedURLIsLocal(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "reports"})
	require.NoError(t, err)
	url, err := s.PresignedURL(context.Background(), "reports/e1/x.pdf", "report.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/reports/reports/e1/x.pdf?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestReportKey(t *testing.T) {
	at := time.Date(2024, 5, 3, 9, 30, 0, 0, time.FixedZone("JST", 9*3600))
	assert.Equal(t, "reports/evt_1/20240503T003000Z.pdf", ReportKey("evt_1", ".pdf", at))
	assert.Equal(t, "reports/evt_1/20240503T003000Z.docx", ReportKey("evt_1", "docx", at))
}
