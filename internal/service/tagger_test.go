package service

import (
	"os"
	"testing"
	"time"

	"filetag-indexer/internal/config"
	"filetag-indexer/internal/database"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/test/mocks"

	_ "github.com/mattn/go-sqlite3" // SQLite3驱动
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taggerTestEnv 打标服务测试环境，库落在临时目录
type taggerTestEnv struct {
	fileRepo   repository.FileRepository
	tagRepo    repository.TagRepository
	queryRepo  repository.QueryRepository
	taggerRepo repository.TaggerRepository
	auditRepo  repository.AuditRepository
	tagger     TaggerService
	watcher    *model.Watcher
}

func setupTaggerTest(t *testing.T) (*taggerTestEnv, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "test-tagger-db")
	require.NoError(t, err)

	logger := &mocks.MockLogger{}
	dbConfig := &config.DatabaseConfig{
		DataDir:           tempDir,
		DatabaseName:      "test-tagger.db",
		MaxOpenConns:      10,
		MaxIdleConns:      5,
		ConnMaxLifetime:   30 * time.Minute,
		EnableWAL:         true,
		EnableForeignKeys: true,
	}
	dbManager := database.NewSQLiteManager(dbConfig, logger)
	require.NoError(t, dbManager.Initialize())

	watcherRepo := repository.NewWatcherRepository(dbManager, logger)
	fileRepo := repository.NewFileRepository(dbManager, logger)
	tagRepo := repository.NewTagRepository(dbManager, logger)
	queryRepo := repository.NewQueryRepository(dbManager, logger)
	taggerRepo := repository.NewTaggerRepository(dbManager, queryRepo, logger)
	auditRepo := repository.NewAuditRepository(dbManager, logger)

	filters := NewFilterService(logger)
	tagger := NewTaggerService(filters, fileRepo, tagRepo, taggerRepo, auditRepo, nil, logger)

	watcher := &model.Watcher{Name: "docs", Path: "/watch/docs", Filter: "*", Enabled: true}
	require.NoError(t, watcherRepo.CreateWatcher(watcher))

	cleanup := func() {
		dbManager.Close()
		os.RemoveAll(tempDir)
	}

	return &taggerTestEnv{
		fileRepo:   fileRepo,
		tagRepo:    tagRepo,
		queryRepo:  queryRepo,
		taggerRepo: taggerRepo,
		auditRepo:  auditRepo,
		tagger:     tagger,
		watcher:    watcher,
	}, cleanup
}

func (env *taggerTestEnv) createFile(t *testing.T, name string, size int64) *model.File {
	t.Helper()

	now := time.Now()
	file := &model.File{
		Path:      env.watcher.Path,
		Name:      name,
		Ext:       extOf(name),
		Size:      size,
		Created:   now,
		Changed:   now,
		WatcherID: env.watcher.ID,
	}
	require.NoError(t, env.fileRepo.CreateFile(file))
	return file
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}

func (env *taggerTestEnv) createQuery(t *testing.T, name string, filters ...*model.Filter) *model.Query {
	t.Helper()

	query := &model.Query{Name: name, Filters: filters}
	require.NoError(t, env.queryRepo.CreateQuery(query))
	return query
}

func (env *taggerTestEnv) createTagger(t *testing.T, name string, tagNames []string, bindings ...*model.AutoTaggerQuery) *model.AutoTagger {
	t.Helper()

	tagger := &model.AutoTagger{Name: name}
	require.NoError(t, env.taggerRepo.CreateTagger(tagger))
	for _, binding := range bindings {
		binding.TaggerID = tagger.ID
		require.NoError(t, env.taggerRepo.AddQueryBinding(binding))
	}
	for _, tagName := range tagNames {
		tag, err := env.tagRepo.GetOrCreateTag(tagName)
		require.NoError(t, err)
		require.NoError(t, env.taggerRepo.AddTagBinding(tagger.ID, tag.ID))
	}

	loaded, err := env.taggerRepo.GetTaggerByID(tagger.ID)
	require.NoError(t, err)
	return loaded
}

func TestTaggerInScope(t *testing.T) {
	env, cleanup := setupTaggerTest(t)
	defer cleanup()

	textQuery := env.createQuery(t, "text files",
		&model.Filter{Field: "Ext", Type: model.FilterTypeString, Value: ".txt", Comparison: model.ComparisonEq})
	bigQuery := env.createQuery(t, "big files",
		&model.Filter{Field: "Size", Type: model.FilterTypeNumeric, Value: "1000", Comparison: model.ComparisonGt})

	smallText := env.createFile(t, "note.txt", 10)
	bigBinary := env.createFile(t, "blob.bin", 5000)

	t.Run("NoBindingsNeverInScope", func(t *testing.T) {
		empty := env.createTagger(t, "empty", []string{"never"})
		inScope, err := env.tagger.InScope(empty, smallText)
		require.NoError(t, err)
		assert.False(t, inScope)
	})

	t.Run("BindingOrderChangesTheResult", func(t *testing.T) {
		// text AND, big OR: (text) OR big
		orLast := env.createTagger(t, "or last", []string{"a"},
			&model.AutoTaggerQuery{QueryID: textQuery.ID, Logic: model.LogicAnd},
			&model.AutoTaggerQuery{QueryID: bigQuery.ID, Logic: model.LogicOr})

		// big AND, text AND: big AND text
		andBoth := env.createTagger(t, "and both", []string{"b"},
			&model.AutoTaggerQuery{QueryID: bigQuery.ID, Logic: model.LogicAnd},
			&model.AutoTaggerQuery{QueryID: textQuery.ID, Logic: model.LogicAnd})

		inScope, err := env.tagger.InScope(orLast, bigBinary)
		require.NoError(t, err)
		assert.True(t, inScope, "OR binding admits big non-text files")

		inScope, err = env.tagger.InScope(andBoth, bigBinary)
		require.NoError(t, err)
		assert.False(t, inScope, "AND chain requires both predicates")

		inScope, err = env.tagger.InScope(orLast, smallText)
		require.NoError(t, err)
		assert.True(t, inScope)

		inScope, err = env.tagger.InScope(andBoth, smallText)
		require.NoError(t, err)
		assert.False(t, inScope)
	})
}

func TestApplyTagger(t *testing.T) {
	env, cleanup := setupTaggerTest(t)
	defer cleanup()

	textQuery := env.createQuery(t, "text files",
		&model.Filter{Field: "Ext", Type: model.FilterTypeString, Value: ".txt", Comparison: model.ComparisonEq})
	tagger := env.createTagger(t, "texts", []string{"document"},
		&model.AutoTaggerQuery{QueryID: textQuery.ID, Logic: model.LogicAnd})

	t.Run("AttachesBoundTagsInScope", func(t *testing.T) {
		file := env.createFile(t, "a.txt", 1)

		changed, err := env.tagger.ApplyTagger(tagger, file)
		require.NoError(t, err)
		assert.True(t, changed)

		require.NoError(t, env.fileRepo.LoadTagsJoin(file))
		assert.Equal(t, "document", file.TagsJoin)

		// 再次应用无变更，不重复写审计
		changed, err = env.tagger.ApplyTagger(tagger, file)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("DetachesOnlyOwnTagsOutOfScope", func(t *testing.T) {
		file := env.createFile(t, "b.txt", 1)

		manual, err := env.tagRepo.GetOrCreateTag("keep")
		require.NoError(t, err)
		_, err = env.tagRepo.AttachTag(file.ID, manual.ID)
		require.NoError(t, err)

		changed, err := env.tagger.ApplyTagger(tagger, file)
		require.NoError(t, err)
		assert.True(t, changed)

		// 重命名为非文本后离开作用域
		renamed, err := env.fileRepo.RenameFile(file.FullPath(), env.watcher.Path+"/b.bin",
			repository.FileMetadata{Size: 1, Created: file.Created, Changed: file.Changed})
		require.NoError(t, err)

		changed, err = env.tagger.ApplyTagger(tagger, renamed)
		require.NoError(t, err)
		assert.True(t, changed)

		require.NoError(t, env.fileRepo.LoadTagsJoin(renamed))
		assert.Equal(t, "keep", renamed.TagsJoin, "manually attached tag survives")
	})

	t.Run("WritesAuditOnlyOnActualChange", func(t *testing.T) {
		before, err := env.auditRepo.ListRecent(1000)
		require.NoError(t, err)

		file := env.createFile(t, "c.txt", 1)
		_, err = env.tagger.ApplyTagger(tagger, file)
		require.NoError(t, err)
		_, err = env.tagger.ApplyTagger(tagger, file)
		require.NoError(t, err)

		after, err := env.auditRepo.ListRecent(1000)
		require.NoError(t, err)
		assert.Equal(t, len(before)+1, len(after))
	})
}

func TestReevaluateFile(t *testing.T) {
	env, cleanup := setupTaggerTest(t)
	defer cleanup()

	textQuery := env.createQuery(t, "text files",
		&model.Filter{Field: "Ext", Type: model.FilterTypeString, Value: ".txt", Comparison: model.ComparisonEq})
	env.createTagger(t, "texts", []string{"document"},
		&model.AutoTaggerQuery{QueryID: textQuery.ID, Logic: model.LogicAnd})

	// 第二个标签器依赖第一个产生的标签串
	taggedQuery := env.createQuery(t, "already tagged",
		&model.Filter{Field: "TagsJoin", Type: model.FilterTypeString, Value: "document", Comparison: model.ComparisonLike})
	env.createTagger(t, "chained", []string{"reviewed"},
		&model.AutoTaggerQuery{QueryID: taggedQuery.ID, Logic: model.LogicAnd})

	file := env.createFile(t, "report.txt", 10)
	require.NoError(t, env.tagger.ReevaluateFile(file))

	require.NoError(t, env.fileRepo.LoadTagsJoin(file))
	assert.Equal(t, "document, reviewed", file.TagsJoin,
		"tags join is reloaded between taggers so chained scopes see earlier tags")
}
