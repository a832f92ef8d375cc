package nlp

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
)

func newTestExtractor() *Extractor {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(catalog.New(), logger)
}

func TestExtract_SimpleOrderFindsMedicationDosageFrequencyCondition(t *testing.T) {
	e := newTestExtractor()
	text := "Start lisinopril 10mg once daily for hypertension"
	entities, err := e.Extract(context.Background(), text)
	require.NoError(t, err)

	byCategory := map[domain.EntityCategory][]domain.Entity{}
	for _, ent := range entities {
		byCategory[ent.Category] = append(byCategory[ent.Category], ent)
		assert.Equal(t, text[ent.Start:ent.End], ent.Text, "entity text must equal input[start:end]")
	}
	assert.NotEmpty(t, byCategory[domain.CategoryMedication])
	assert.NotEmpty(t, byCategory[domain.CategoryDosage])
	assert.NotEmpty(t, byCategory[domain.CategoryFrequency])
	assert.NotEmpty(t, byCategory[domain.CategoryCondition])

	assert.Equal(t, "lisinopril", byCategory[domain.CategoryMedication][0].AttributeOr("normalized", ""))
}

// "once daily" and "daily" both match the frequency lexicon over the
// same text range; only the longer span should survive (spec §3, §8: no
// two same-category finals overlap).
func TestExtract_OverlappingFrequencyCollapsesToLongestSpan(t *testing.T) {
	e := newTestExtractor()
	text := "Start lisinopril 10mg once daily for hypertension"
	entities, err := e.Extract(context.Background(), text)
	require.NoError(t, err)

	var freq []domain.Entity
	for _, ent := range entities {
		if ent.Category == domain.CategoryFrequency {
			freq = append(freq, ent)
		}
	}
	require.Len(t, freq, 1)
	assert.Equal(t, "once daily", freq[0].Text)

	for i := range entities {
		for j := range entities {
			if i == j || entities[i].Category != entities[j].Category {
				continue
			}
			assert.False(t, entities[i].Overlaps(entities[j]), "same-category entities must not overlap: %+v / %+v", entities[i], entities[j])
		}
	}
}

func TestExtract_NoInventedText(t *testing.T) {
	e := newTestExtractor()
	text := "Continue warfarin 2mg daily, add aspirin 81mg daily for cardioprotection"
	entities, err := e.Extract(context.Background(), text)
	require.NoError(t, err)
	for _, ent := range entities {
		assert.Equal(t, text[ent.Start:ent.End], ent.Text)
	}
}

func TestExtract_EmptyTextReturnsNoEntities(t *testing.T) {
	e := newTestExtractor()
	entities, err := e.Extract(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, entities)
}
