package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/pkg/models"
)

type memSaver struct {
	objects  map[string]models.LanguageObject
	batches  int
	batchErr error
}

func newMemSaver() *memSaver {
	return &memSaver{objects: make(map[string]models.LanguageObject)}
}

func (s *memSaver) GetByID(_ context.Context, id string) (*models.LanguageObject, error) {
	o, ok := s.objects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &o, nil
}

func (s *memSaver) SaveBatch(_ context.Context, objects []models.LanguageObject) error {
	if s.batchErr != nil {
		return s.batchErr
	}
	s.batches++
	for _, o := range objects {
		s.objects[o.ID] = o
	}
	return nil
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &r))
	}
	path := filepath.Join(t.TempDir(), "signals.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportObjects_Excel(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"id", "kind", "content", "translation", "f", "r", "e", "irt"},
		{"w-haus", "word", "Haus", "house", 0.9, 0.6, 0.4, -1.2},
		{"", "morpheme", "-chen", "diminutive", 0.5, 0.8, 0.2, 0.5},
		{"w-bad", "word", "Bad", "bath", 1.5, 0.1, 0.1, 0},
		{"w-nan", "word", "Nan", "", "abc", 0.1, 0.1, 0},
		{"g-x", "idiom", "x", "", 0.1, 0.1, 0.1, 0},
	})

	saver := newMemSaver()
	config := DefaultImportConfig()
	config.FilePath = path

	result, err := ImportObjects(context.Background(), config, saver)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Row 4")

	haus := saver.objects["w-haus"]
	assert.Equal(t, models.KindWord, haus.Kind)
	assert.Equal(t, "house", haus.Translation)
	assert.InDelta(t, 0.9, haus.Frequency, 1e-12)
	assert.InDelta(t, -1.2, haus.IRTDifficulty, 1e-12)

	chen, ok := saver.objects["morpheme:-chen"]
	require.True(t, ok)
	assert.Equal(t, models.KindMorpheme, chen.Kind)
	assert.Equal(t, 1, saver.batches)
}

func TestImportObjects_FailedBatchImportsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	body := "id,kind,content,translation,f,r,e,irt\n" +
		"w-haus,word,Haus,house,0.7,0.6,0.4,-1\n" +
		"w-baum,word,Baum,tree,0.5,0.5,0.5,0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	saver := newMemSaver()
	saver.batchErr = errors.New("database is locked")

	config := DefaultImportConfig()
	config.FilePath = path

	_, err := ImportObjects(context.Background(), config, saver)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, saver.objects)
}

func TestImportObjects_DuplicateRowsLastWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	body := "id,kind,content,translation,f,r,e,irt\n" +
		"w-haus,word,Haus,house,0.7,0.6,0.4,-1\n" +
		"w-haus,word,Haus,home,0.8,0.6,0.4,-1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	saver := newMemSaver()
	config := DefaultImportConfig()
	config.FilePath = path

	result, err := ImportObjects(context.Background(), config, saver)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, "home", saver.objects["w-haus"].Translation)
	assert.InDelta(t, 0.8, saver.objects["w-haus"].Frequency, 1e-12)
}

func TestImportObjects_CSVUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	body := "id,kind,content,translation,f,r,e,irt\n" +
		"w-haus,word,Haus,house,\"0,7\",0.6,0.4,-1\n" +
		"\n" +
		"w-baum,,Baum,tree,0.5,0.5,0.5,0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	saver := newMemSaver()
	saver.objects["w-haus"] = models.LanguageObject{ID: "w-haus", Content: "Haus", Frequency: 0.1}

	config := DefaultImportConfig()
	config.FilePath = path

	result, err := ImportObjects(context.Background(), config, saver)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)
	assert.InDelta(t, 0.7, saver.objects["w-haus"].Frequency, 1e-12)
	assert.Equal(t, models.KindWord, saver.objects["w-baum"].Kind)
}

func TestImportObjects_MissingFile(t *testing.T) {
	config := DefaultImportConfig()
	config.FilePath = filepath.Join(t.TempDir(), "nope.xlsx")
	_, err := ImportObjects(context.Background(), config, newMemSaver())
	assert.Error(t, err)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 7, columnToIndex("h"))
	assert.Equal(t, 26, columnToIndex("AA"))
}

func TestExportQueue(t *testing.T) {
	items := []queue.Item{
		{Object: models.LanguageObject{ID: "w-haus", Kind: models.KindWord, Content: "Haus"}, Priority: 2, Urgency: 1.5, FinalScore: 5},
		{Object: models.LanguageObject{ID: "w-baum", Kind: models.KindWord, Content: "Baum"}, Priority: 1, FinalScore: 1,
			Mastery: &models.MasteryState{Stage: models.StageRecall}},
	}
	path := filepath.Join(t.TempDir(), "queue.xlsx")
	require.NoError(t, ExportQueue(path, items))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Queue")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Rank", rows[0][0])
	assert.Equal(t, "w-haus", rows[1][1])
	assert.Equal(t, "Recall", rows[2][8])
}
