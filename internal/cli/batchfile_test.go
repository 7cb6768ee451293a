package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

const yamlBatch = `participants:
  - first_name: Jardel
    last_name: Silva Santos
    email: jardel@example.com
    certificate_background: bg.png
    order_id: 87
    product_id: "9"
    product_name: Acme Floripa
    order_date: "2024-11-12 21:41:38"
    time_checkin: "2024-11-12 22:00:00"
    validation_code: abc123def
`

func TestReadBatchYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBatch), 0o644))

	batch, err := readBatch(path)
	require.NoError(t, err)
	require.Len(t, batch.Participants, 1)

	p, err := models.ParseParticipant(batch.Participants[0])
	require.NoError(t, err)
	assert.Equal(t, "Silva Santos", p.LastName)
	assert.Equal(t, int64(87), p.Event.OrderID)
	assert.Equal(t, int64(9), p.Event.ProductID)
	assert.Equal(t, time.Date(2024, 11, 12, 21, 41, 38, 0, time.UTC), p.Event.OrderDate.UTC())
	assert.Equal(t, 22, p.Event.CheckinAt.Hour())

	key, err := p.CertificateFilename()
	require.NoError(t, err)
	assert.Equal(t, "Jardel_Silva_SantosAcme_Floripa_ABC-123-DEF.png", key)
}

func TestReadBatchRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yml")
	require.NoError(t, os.WriteFile(path, []byte("participants: [\n"), 0o644))

	_, err := readBatch(path)
	assert.ErrorIs(t, err, models.ErrBatchInput)
}

func TestReadBatchMissingFile(t *testing.T) {
	_, err := readBatch(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read batch")
}
