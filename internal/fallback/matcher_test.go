package fallback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot-go/internal/model"
)

type fakeSource struct {
	docs []*model.Document
	err  error
}

func (f *fakeSource) FindAll(context.Context) ([]*model.Document, error) {
	return f.docs, f.err
}

func (f *fakeSource) FindByOrganization(_ context.Context, organizationID uint) ([]*model.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Document
	for _, d := range f.docs {
		if d.Organization() == organizationID {
			out = append(out, d)
		}
	}
	return out, nil
}

func newMatcher(t *testing.T, docs ...*model.Document) *Matcher {
	t.Helper()
	terms, err := DefaultTermTable()
	require.NoError(t, err)
	return NewMatcher(&fakeSource{docs: docs}, terms)
}

func doc(id, text string, org uint) *model.Document {
	return &model.Document{ID: id, Filename: id + ".txt", ExtractedText: text, OrganizationID: org}
}

func uintPtr(v uint) *uint { return &v }

func TestMatcher_ArabicQueryFindsEnglishDocument(t *testing.T) {
	m := newMatcher(t, doc("report", "There were 42 injuries recorded in the match.", 1))

	results := m.Search(context.Background(), "كم عدد الاصابات في المباراة؟", nil)

	require.Len(t, results, 1)
	assert.Equal(t, "report", results[0].DocumentID)
	assert.Equal(t, "report.txt", results[0].Filename)
	assert.GreaterOrEqual(t, results[0].Relevance, 0.5)
	assert.InDelta(t, 0.7, results[0].Relevance, 1e-9)
	assert.Equal(t, []string{"There were 42 injuries recorded in the match"}, results[0].Chunks)
}

func TestMatcher_ArabicKeywords(t *testing.T) {
	m := newMatcher(t)

	kw := m.Keywords("كم عدد الاصابات في المباراة؟")

	assert.Contains(t, kw, "injuries")
	assert.Contains(t, kw, "injury")
	assert.Contains(t, kw, "match")
	assert.Contains(t, kw, "how many")
	assert.NotContains(t, kw, "in")
	seen := map[string]bool{}
	for _, k := range kw {
		assert.False(t, seen[k], "duplicate keyword %q", k)
		seen[k] = true
	}
}

func TestMatcher_ArabicPhraseLookup(t *testing.T) {
	m := newMatcher(t)

	kw := m.Keywords("ما هو وقت التعافي من إصابة الرباط الصليبي")

	assert.Contains(t, kw, "recovery time")
	assert.Contains(t, kw, "cruciate ligament")
	assert.Contains(t, kw, "injury")
}

func TestMatcher_UnmappedArabicUsesGenericKeywords(t *testing.T) {
	m := newMatcher(t)

	kw := m.Keywords("مرحبا بكم")

	assert.Equal(t, m.terms.GenericKeywords, kw)
	for _, anchor := range []string{"injury", "injuries"} {
		assert.Contains(t, kw, anchor)
	}
}

func TestMatcher_EnglishQueryIsLowercasedString(t *testing.T) {
	m := newMatcher(t)
	assert.Equal(t, []string{"hamstring injuries"}, m.Keywords("  Hamstring Injuries "))
	assert.Nil(t, m.Keywords("   "))
}

func TestMatcher_EnglishSentenceRetention(t *testing.T) {
	m := newMatcher(t,
		doc("clinic", "The clinic logged INJURIES. The weather was sunny. Budget 2024 approved.", 1),
		doc("other", "Nothing relevant here.", 1),
	)

	results := m.Search(context.Background(), "injuries", nil)

	require.Len(t, results, 1)
	assert.Equal(t, "clinic", results[0].DocumentID)
	assert.InDelta(t, 0.6, results[0].Relevance, 1e-9)
	assert.Equal(t, []string{"The clinic logged INJURIES", "Budget 2024 approved"}, results[0].Chunks)
}

func TestMatcher_ExcludesDocumentsWithoutRetainedSentences(t *testing.T) {
	m := newMatcher(t, doc("split", "The end. Start again", 1))

	assert.Empty(t, m.Search(context.Background(), "end. start", nil))
}

func TestMatcher_RelevanceCappedBelowVectorMaximum(t *testing.T) {
	m := newMatcher(t, doc("season", "The team player had injuries in the match this season, total count 3.", 1))

	results := m.Search(context.Background(), "الفريق اللاعب الاصابات المباراة الموسم عدد", nil)

	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].Relevance, 1e-9)
}

func TestMatcher_AtMostFiveSentences(t *testing.T) {
	text := strings.Repeat("Another injury was reported. ", 9)
	m := newMatcher(t, doc("many", text, 1))

	results := m.Search(context.Background(), "injury", nil)

	require.Len(t, results, 1)
	assert.Len(t, results[0].Chunks, 5)
}

func TestMatcher_OrganizationScope(t *testing.T) {
	m := newMatcher(t,
		doc("org1", "Knee injuries are common.", 1),
		doc("org2", "Knee injuries are common.", 2),
		doc("legacy", "Knee injuries in older records.", 0),
	)
	ctx := context.Background()

	org2 := m.Search(ctx, "knee", uintPtr(2))
	require.Len(t, org2, 1)
	assert.Equal(t, "org2", org2[0].DocumentID)

	org1 := m.Search(ctx, "knee", uintPtr(1))
	require.Len(t, org1, 2)
	assert.Equal(t, "org1", org1[0].DocumentID)
	assert.Equal(t, "legacy", org1[1].DocumentID)

	assert.Len(t, m.Search(ctx, "knee", nil), 3)
}

func TestMatcher_OrderedByRelevanceThenRegistryOrder(t *testing.T) {
	m := newMatcher(t,
		doc("a", "Injuries happened.", 1),
		doc("b", "Injuries happened during the match with the team.", 1),
		doc("c", "More injuries happened.", 1),
	)

	results := m.Search(context.Background(), "الاصابات المباراة الفريق", nil)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{results[0].DocumentID, results[1].DocumentID, results[2].DocumentID})
	assert.Greater(t, results[0].Relevance, results[1].Relevance)
	assert.Equal(t, results[1].Relevance, results[2].Relevance)
}

func TestMatcher_SkipsDocumentsWithoutText(t *testing.T) {
	m := newMatcher(t, doc("empty", "", 1))
	assert.Empty(t, m.Search(context.Background(), "injury", nil))
}

func TestMatcher_RegistryErrorYieldsEmpty(t *testing.T) {
	terms, err := DefaultTermTable()
	require.NoError(t, err)
	m := NewMatcher(&fakeSource{err: errors.New("db down")}, terms)

	assert.Empty(t, m.Search(context.Background(), "injury", nil))
	assert.Empty(t, m.Search(context.Background(), "injury", uintPtr(1)))
}

func TestTermTable_DefaultDoesNotMapStopWords(t *testing.T) {
	terms, err := DefaultTermTable()
	require.NoError(t, err)

	_, mapped := terms.Words["في"]
	assert.False(t, mapped)
	assert.Equal(t, []string{"injury", "injuries"}, terms.AnchorKeywords)
	assert.NotEmpty(t, terms.Phrases)
}

func TestLoadTermTable_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
words:
  هدف: [Goal]
generic_keywords: [score]
anchor_keywords: [injury]
sentence_terms: [injury]
`), 0o644))

	terms, err := LoadTermTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"goal"}, terms.Words["هدف"])

	m := NewMatcher(&fakeSource{}, terms)
	assert.Equal(t, []string{"goal", "injury"}, m.Keywords("هدف"))
	assert.Equal(t, []string{"score", "injury"}, m.Keywords("سؤال"))
}

func TestLoadTermTable_Errors(t *testing.T) {
	_, err := LoadTermTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseTermTable([]byte("words: [not, a, map"))
	assert.Error(t, err)

	def, err := LoadTermTable("")
	require.NoError(t, err)
	assert.NotEmpty(t, def.Words)
}
