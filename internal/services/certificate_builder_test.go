package services

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/layout"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/render"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/retry"
)

type builderFixture struct {
	assets   *fakeAssets
	blobs    *fakeBlobStore
	outcomes *fakeOutcomeSender
	builder  *CertificateBuilder
}

func newBuilderFixture(t *testing.T, workers int) *builderFixture {
	t.Helper()

	white := image.NewRGBA(image.Rect(0, 0, 1200, 800))
	draw.Draw(white, white.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	logo := image.NewRGBA(image.Rect(0, 0, 60, 60))
	draw.Draw(logo, logo.Bounds(), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)

	fonts, err := render.LoadFonts(render.DefaultFontConfig())
	require.NoError(t, err)

	f := &builderFixture{
		assets: &fakeAssets{images: map[string]image.Image{
			"mem://bg":    white,
			"mem://logo":  logo,
			"mem://empty": image.NewRGBA(image.Rectangle{}),
		}},
		blobs:    &fakeBlobStore{},
		outcomes: &fakeOutcomeSender{},
	}
	m := metrics.New()
	coord := NewDeliveryCoordinator(f.blobs, nil, repository.NewMemoryDedupStore(), NewStatusUpdater(nil, discardLogger()),
		m, discardLogger(), retry.Config{MaxAttempts: 3}, 0)
	compositor := render.NewCompositor(layout.New(layout.DefaultConfig()), fonts, discardLogger())
	f.builder = NewCertificateBuilder(f.assets, compositor, coord, f.outcomes, retry.Config{MaxAttempts: 3}, m, discardLogger(), workers)
	return f
}

func participantJSON(first, background, code string) json.RawMessage {
	rec := map[string]interface{}{
		"first_name":             first,
		"last_name":              "Souza",
		"email":                  first + "@example.com",
		"certificate_details":    "participou do evento {{product_name}} com carga horaria de quatro horas",
		"certificate_logo":       "mem://logo",
		"certificate_background": background,
		"order_id":               87,
		"product_id":             9,
		"product_name":           "Acme Floripa",
		"order_date":             "2024-11-12 21:41:38",
		"validation_code":        code,
	}
	raw, _ := json.Marshal(rec)
	return raw
}

func TestBuildIsolatesFailingParticipant(t *testing.T) {
	for _, workers := range []int{1, 3} {
		f := newBuilderFixture(t, workers)
		batch := &models.BatchEnvelope{Participants: []json.RawMessage{
			participantJSON("ana", "mem://bg", "aaa111aaa"),
			participantJSON("bia", "mem://empty", "bbb222bbb"),
			participantJSON("caio", "mem://bg", "ccc333ccc"),
		}}

		outcomes, err := f.builder.Build(context.Background(), batch)
		require.NoError(t, err)
		require.Len(t, outcomes, 3)

		assert.True(t, outcomes[0].Success)
		assert.Equal(t, "ana@example.com", outcomes[0].Email)
		assert.False(t, outcomes[1].Success)
		assert.Equal(t, "bia@example.com", outcomes[1].Email)
		assert.Contains(t, outcomes[1].Error, models.ErrComposition.Error())
		assert.True(t, outcomes[2].Success)
		assert.Equal(t, "caio@example.com", outcomes[2].Email)

		assert.ElementsMatch(t, []string{outcomes[0].CertificateKey, outcomes[2].CertificateKey}, f.blobs.Keys())
		require.Len(t, f.outcomes.batches, 1)
		assert.Equal(t, outcomes, f.outcomes.batches[0])
		assert.NotEmpty(t, f.outcomes.ids[0])

		// The shared background is fetched once per batch.
		assert.Equal(t, 1, f.assets.calls["mem://bg"])
	}
}

func TestBuildUploadsOpaquePNG(t *testing.T) {
	f := newBuilderFixture(t, 1)
	batch := &models.BatchEnvelope{Participants: []json.RawMessage{participantJSON("ana", "mem://bg", "abc123def")}}

	outcomes, err := f.builder.Build(context.Background(), batch)
	require.NoError(t, err)
	require.True(t, outcomes[0].Success)
	assert.Equal(t, "Ana_SouzaAcme_Floripa_ABC-123-DEF.png", outcomes[0].CertificateKey)
	assert.Equal(t, "ABC-123-DEF", outcomes[0].ValidationCode)
	assert.Equal(t, int64(87), outcomes[0].OrderID)

	data := f.blobs.objects[outcomes[0].CertificateKey]
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(1200, 800), img.Bounds().Size())
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestBuildReplayedBatchIsSkipped(t *testing.T) {
	f := newBuilderFixture(t, 2)
	batch := &models.BatchEnvelope{Participants: []json.RawMessage{
		participantJSON("ana", "mem://bg", "abc123def"),
		participantJSON("bia", "mem://bg", "def456abc"),
	}}

	_, err := f.builder.Build(context.Background(), batch)
	require.NoError(t, err)
	outcomes, err := f.builder.Build(context.Background(), batch)
	require.NoError(t, err)

	for _, o := range outcomes {
		assert.True(t, o.Success)
		assert.True(t, o.Skipped)
	}
	assert.Equal(t, 2, f.blobs.Calls())
}

func TestBuildReportsInvalidRecords(t *testing.T) {
	f := newBuilderFixture(t, 1)
	batch := &models.BatchEnvelope{Participants: []json.RawMessage{
		json.RawMessage(`{"email":"broken@example.com","order_id":"not-a-number"}`),
		participantJSON("", "mem://bg", "abc123def"),
		participantJSON("ana", "mem://missing", "abc123def"),
	}}

	outcomes, err := f.builder.Build(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.False(t, outcomes[0].Success)
	assert.Equal(t, "broken@example.com", outcomes[0].Email)
	assert.Contains(t, outcomes[0].Error, models.ErrValidation.Error())
	assert.False(t, outcomes[1].Success)
	assert.Contains(t, outcomes[1].Error, "first_name")
	assert.False(t, outcomes[2].Success)
	assert.Contains(t, outcomes[2].Error, models.ErrFetch.Error())
	assert.Zero(t, f.blobs.Calls())
}

func TestBuildEmptyBatch(t *testing.T) {
	f := newBuilderFixture(t, 1)

	_, err := f.builder.Build(context.Background(), &models.BatchEnvelope{})
	assert.ErrorIs(t, err, models.ErrBatchInput)
	_, err = f.builder.Build(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrBatchInput)
	assert.Empty(t, f.outcomes.batches)
}

func TestBuildReturnsOutcomesWhenSendFails(t *testing.T) {
	f := newBuilderFixture(t, 1)
	f.outcomes.err = errUnavailable
	batch := &models.BatchEnvelope{BatchID: "batch-7", Participants: []json.RawMessage{participantJSON("ana", "mem://bg", "abc123def")}}

	outcomes, err := f.builder.Build(context.Background(), batch)
	assert.Equal(t, []string{"batch-7", "batch-7", "batch-7"}, f.outcomes.ids)
	assert.ErrorIs(t, err, errUnavailable)
	assert.ErrorIs(t, err, models.ErrNotification)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, 1, f.blobs.Calls())
}

func TestBuildRetriesOnlyTheSend(t *testing.T) {
	f := newBuilderFixture(t, 1)
	f.outcomes.failures = 2
	batch := &models.BatchEnvelope{BatchID: "batch-8", Participants: []json.RawMessage{
		participantJSON("ana", "mem://bg", ""),
		participantJSON("bia", "mem://bg", ""),
	}}

	outcomes, err := f.builder.Build(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, f.outcomes.ids, 3)
	assert.Equal(t, outcomes, f.outcomes.batches[2])
	assert.Equal(t, 2, f.blobs.Calls())
}

func TestBuildRedeliveredBatchWithoutCodesIsSkipped(t *testing.T) {
	f := newBuilderFixture(t, 2)
	f.outcomes.err = errUnavailable
	body, err := json.Marshal(models.BatchEnvelope{Participants: []json.RawMessage{
		participantJSON("ana", "mem://bg", ""),
		participantJSON("bia", "mem://bg", ""),
	}})
	require.NoError(t, err)

	var keys [][]string
	for range 2 {
		batch, err := models.DecodeBatch(body)
		require.NoError(t, err)
		batch.BatchID = "msg-1"

		outcomes, err := f.builder.Build(context.Background(), batch)
		require.ErrorIs(t, err, models.ErrNotification)
		keys = append(keys, []string{outcomes[0].CertificateKey, outcomes[1].CertificateKey})
	}

	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, 2, f.blobs.Calls())
	assert.ElementsMatch(t, keys[0], f.blobs.Keys())
}
