package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeVectorRoundTrip(t *testing.T) {
	vector := []float32{0.25, -1.5, 0, 3.125, -0.0625}

	blob := encodeVector(vector)
	assert.Len(t, blob, 4*len(vector))

	decoded := decodeVector(blob)
	assert.Equal(t, vector, decoded)
}

func TestEncodeVectorEmpty(t *testing.T) {
	assert.Empty(t, encodeVector(nil))
	assert.Empty(t, decodeVector(nil))
}

func TestRecordFromFields(t *testing.T) {
	record, err := recordFromFields(map[string]string{
		"conversation_id": "conv-1",
		"distance":        "0.25",
		"snapshot":        `{"title": "Survey"}`,
	})
	assert.NoError(t, err)
	assert.Equal(t, "conv-1", record.ConversationID)
	assert.InDelta(t, 0.75, record.Score, 1e-9)
	assert.Equal(t, "Survey", record.Snapshot["title"])
}

func TestRecordFromFields_ScoreClampedAtZero(t *testing.T) {
	// Cosine distance can exceed 1 for opposed vectors; similarity never
	// reports below zero.
	record, err := recordFromFields(map[string]string{
		"conversation_id": "conv-2",
		"distance":        "1.8",
	})
	assert.NoError(t, err)
	assert.Zero(t, record.Score)
}

func TestRecordFromFields_BadDistance(t *testing.T) {
	_, err := recordFromFields(map[string]string{
		"conversation_id": "conv-3",
		"distance":        "not-a-number",
	})
	assert.Error(t, err)
}
