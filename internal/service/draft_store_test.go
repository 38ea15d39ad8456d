package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

func sampleForm() models.SyllabusForm {
	extra := map[string]json.RawMessage{"materials": json.RawMessage(`["Cormen, CLRS"]`)}
	return models.SyllabusForm{
		SubjectCode: "IF101",
		SubjectName: "Algorithms",
		Summary:     "Intro course",
		Content: models.Content{
			Prerequisites:     []string{"IF100"},
			PLOs:              []models.LearningOutcome{{Code: "PLO-1", Description: "Analyse problems"}},
			CLOs:              []models.LearningOutcome{{Code: "CLO-1", Description: "Design algorithms", Level: "C4"}},
			OutcomeMapping:    []models.OutcomeMapping{{CLO: "CLO-1", PLO: "PLO-1"}},
			AssessmentWeights: []models.AssessmentWeight{{Name: "Exam", Weight: 60, CLOs: []string{"CLO-1"}}},
			Extra:             extra,
		},
	}
}

func TestDraftStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewDraftStore(repository.NewMemoryKVStore())
	session := &models.SessionContext{ActorID: "lect-1"}
	form := sampleForm()

	_, err := store.Save(ctx, session, "", form)
	require.NoError(t, err)
	loaded, err := store.Load(ctx, session, models.NewDraftKey)
	require.NoError(t, err)
	assert.Equal(t, form, loaded.Form)

	_, err = store.Save(ctx, session, models.NewDraftKey, loaded.Form)
	require.NoError(t, err)
	again, err := store.Load(ctx, session, models.NewDraftKey)
	require.NoError(t, err)
	assert.Equal(t, loaded.Form, again.Form)
}

func TestDraftStoreRoundTripEmptyCollections(t *testing.T) {
	ctx := context.Background()
	store := NewDraftStore(repository.NewMemoryKVStore())
	session := &models.SessionContext{ActorID: "lect-1"}
	form := models.SyllabusForm{
		SubjectCode: "IF102",
		Content: models.Content{
			CLOs:              []models.LearningOutcome{},
			Prerequisites:     []string{},
			AssessmentWeights: []models.AssessmentWeight{{Name: "Quiz", Weight: 10, CLOs: []string{}}},
			Extra:             map[string]json.RawMessage{},
		},
	}

	saved, err := store.Save(ctx, session, "", form)
	require.NoError(t, err)
	loaded, err := store.Load(ctx, session, models.NewDraftKey)
	require.NoError(t, err)
	assert.Equal(t, saved.Form, loaded.Form)
	assert.Nil(t, loaded.Form.Content.CLOs)
	assert.Nil(t, loaded.Form.Content.AssessmentWeights[0].CLOs)

	want, err := json.Marshal(form)
	require.NoError(t, err)
	got, err := json.Marshal(loaded.Form)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
	assert.NotNil(t, form.Content.AssessmentWeights[0].CLOs)
}

func TestDraftStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewDraftStore(nil)
	first := sampleForm()
	second := models.SyllabusForm{SubjectName: "Only name"}

	_, err := store.Save(ctx, nil, "S1", first)
	require.NoError(t, err)
	_, err = store.Save(ctx, nil, "S1", second)
	require.NoError(t, err)
	loaded, err := store.Load(ctx, nil, "S1")
	require.NoError(t, err)
	assert.Equal(t, second, loaded.Form)
}

func TestDraftStoreIsolatesActorsAndKeys(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	store := NewDraftStore(kv)
	alice := &models.SessionContext{ActorID: "alice"}
	bob := &models.SessionContext{ActorID: "bob"}

	_, err := store.Save(ctx, alice, "new", sampleForm())
	require.NoError(t, err)
	_, err = store.Load(ctx, bob, "new")
	assert.True(t, errors.Is(err, appErrors.ErrDraftNotFound))
	_, err = store.Load(ctx, alice, "S9")
	assert.True(t, errors.Is(err, appErrors.ErrDraftNotFound))
}

func TestDraftStoreRekey(t *testing.T) {
	ctx := context.Background()
	store := NewDraftStore(nil)
	form := sampleForm()
	_, err := store.Save(ctx, nil, models.NewDraftKey, form)
	require.NoError(t, err)

	form.ID = "S1"
	require.NoError(t, store.Rekey(ctx, nil, models.NewDraftKey, "S1", form))
	_, err = store.Load(ctx, nil, models.NewDraftKey)
	assert.True(t, errors.Is(err, appErrors.ErrDraftNotFound))
	moved, err := store.Load(ctx, nil, "S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", moved.Form.ID)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(repository.NewMemoryKVStore())

	_, err := store.Load(ctx)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	require.NoError(t, store.Save(ctx, models.SessionContext{Token: "t", ActorID: "u1", Role: "ROLE_HOD", DisplayID: "Dr. A"}))
	session, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoleHOD, session.Role)
	assert.Equal(t, "Dr. A", session.DisplayID)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
