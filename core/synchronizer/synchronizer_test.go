package synchronizer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gamedata-sync/core/manifest"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/retry"
	"gamedata-sync/core/schema"
	"gamedata-sync/core/snapshot"
	"gamedata-sync/core/synchronizer"
	"gamedata-sync/core/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	weaponPath = "ExcelBinOutput/WeaponExcelConfigData.json"
	avatarPath = "ExcelBinOutput/AvatarExcelConfigData.json"
	textEN     = "TextMap/TextMapEN.json"
	iconPath   = "Icons/UI_Sword.png"
	iconName   = "icons/sword.png"
)

var (
	pngBody = append(append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte("IHDR....IDAT....")...),
		0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xae, 0x42, 0x60, 0x82)

	manifestDoc = `
tables:
  - name: Weapon
    path: ` + weaponPath + `
    obfuscated: true
    text_fields: [nameTextMapHash]
  - name: Avatar
    path: ` + avatarPath + `
assets:
  - name: ` + iconName + `
    path: ` + iconPath + `
consumers:
  - name: weapons
    tables: [Weapon]
    assets: [` + iconName + `]
  - name: characters
    tables: [Avatar]
`
	weaponTemplate = `{"sourceTableName": "Weapon", "primaryPattern": {"id": 101, "nameTextMapHash": 1001, "tags": [1, 2, 3]}}`
)

// hook answers one request for a path. call counts requests for that path from 1.
type hook func(call int) (int, []byte)

// statusDropped makes the fake upstream announce a longer body than it sends and
// hang up, which clients observe as an unexpected EOF.
const statusDropped = -1

type fakeUpstream struct {
	mu        sync.Mutex
	revision  string
	files     map[string][]byte
	hooks     map[string]hook
	calls     map[string]int
	revisions int
	total     atomic.Int32
	srv       *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	f := &fakeUpstream{
		revision: "r1",
		files: map[string][]byte{
			weaponPath: []byte(`[{"a": 101, "b": 1001, "c": [1, 2, 3]}, {"a": 102, "b": 1002, "c": [4]}]`),
			avatarPath: []byte(`[{"id": 1, "nameTextMapHash": 2001}]`),
			textEN:     []byte(`{"1001": "Sword", "1002": "Bow", "2001": "Traveler", "3000": "Unused"}`),
			iconPath:   pngBody,
		},
		hooks: map[string]hook{},
		calls: map[string]int{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	f.total.Add(1)

	if r.URL.Path == "/commits" {
		f.mu.Lock()
		f.revisions++
		rev := f.revision
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": rev, "committed_date": "2024-05-01T10:00:00Z"}})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/raw/")
	_, path, _ := strings.Cut(rest, "/")

	f.mu.Lock()
	f.calls[path]++
	call := f.calls[path]
	h := f.hooks[path]
	body, ok := f.files[path]
	f.mu.Unlock()

	if h != nil {
		status, b := h(call)
		if status == statusDropped {
			w.Header().Set("Content-Length", strconv.Itoa(len(b)+64))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write(b)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(body)
}

func (f *fakeUpstream) setRevision(rev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revision = rev
}

func (f *fakeUpstream) setFile(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = []byte(body)
}

func (f *fakeUpstream) setHook(path string, h hook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[path] = h
}

func (f *fakeUpstream) file(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[path]
}

func (f *fakeUpstream) callsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeUpstream) revisionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revisions
}

func (f *fakeUpstream) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
	f.revisions = 0
	f.total.Store(0)
}

type memoryRecorder struct {
	mu   sync.Mutex
	runs []synchronizer.Run
}

func (r *memoryRecorder) Record(_ context.Context, run synchronizer.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memoryRecorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.runs))
	for i, run := range r.runs {
		out[i] = run.Status
	}
	return out
}

func (r *memoryRecorder) last() synchronizer.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[len(r.runs)-1]
}

type harness struct {
	up        *fakeUpstream
	cache     *persist.DiskStore
	templates *persist.DiskStore
	manifest  *manifest.Manifest
	snaps     *snapshot.Cache
	rec       *memoryRecorder
	cfg       synchronizer.Config
	sync      *synchronizer.Synchronizer
}

func newHarness(t *testing.T, concurrency int) *harness {
	t.Helper()
	ctx := context.Background()

	m, err := manifest.Parse(strings.NewReader(manifestDoc), "yaml")
	require.NoError(t, err)

	cache, err := persist.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	templates, err := persist.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, templates.Write(ctx, schema.TemplateKey("Weapon"), strings.NewReader(weaponTemplate)))

	h := &harness{
		up:        newFakeUpstream(t),
		cache:     cache,
		templates: templates,
		manifest:  m,
		cfg: synchronizer.Config{
			Languages:   []string{"EN"},
			Concurrency: concurrency,
			MaxPasses:   3,
		},
	}
	h.restart()
	return h
}

// restart builds a fresh synchronizer and snapshot cache over the same stores.
func (h *harness) restart() {
	h.snaps = snapshot.NewCache()
	h.rec = &memoryRecorder{}
	client := upstream.New(upstream.Config{
		RevisionURL: h.up.srv.URL + "/commits",
		FileURL:     h.up.srv.URL + "/raw/{revision}/{path}",
	}, zap.NewNop())
	h.sync = synchronizer.New(h.cfg, h.manifest, client, h.cache,
		schema.NewRegistry(h.templates, zap.NewNop()), h.snaps, zap.NewNop(),
		synchronizer.WithRecorder(h.rec),
		synchronizer.WithRetrier(retry.NewRetrier(retry.WithDelayScale(0))),
	)
}

func (h *harness) allTables(t *testing.T) []manifest.Table {
	t.Helper()
	tables, err := h.sync.RequiredTables(nil)
	require.NoError(t, err)
	return tables
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestRefresh_PublishesSnapshot(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))

	snap := h.snaps.Current()
	require.NotNil(t, snap)
	assert.Equal(t, "r1", snap.Revision)
	assert.Equal(t, "2024-05-01T10:00:00Z", snap.Timestamp)

	weapons, ok := h.snaps.Table("Weapon")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id": 101, "nameTextMapHash": 1001, "tags": [1, 2, 3]}, {"id": 102, "nameTextMapHash": 1002, "tags": [4]}]`, marshal(t, weapons))
	assert.Equal(t, 1.0, snap.Confidence["Weapon"])
	assert.NotContains(t, snap.Confidence, "Avatar")

	for hash, want := range map[uint64]string{1001: "Sword", 1002: "Bow", 2001: "Traveler"} {
		text, ok := h.snaps.Text("EN", hash)
		assert.True(t, ok)
		assert.Equal(t, want, text)
	}
	_, ok = h.snaps.Text("EN", 3000)
	assert.False(t, ok, "unreferenced entries are filtered out")
	assert.Equal(t, map[string]bool{iconName: true}, snap.Assets)

	filtered, err := persist.ReadAll(ctx, h.cache, synchronizer.TextMapKey("EN"))
	require.NoError(t, err)
	assert.NotContains(t, string(filtered), "Unused")

	run := h.rec.last()
	assert.Equal(t, synchronizer.RunPublished, run.Status)
	assert.Equal(t, "r1", run.Revision)
	assert.Equal(t, 4, run.Fetched)
	assert.NotEmpty(t, run.ID)
}

func TestSync_UnchangedFingerprintMakesNoRequests(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))
	before := h.snaps.Current()

	h.up.reset()
	require.NoError(t, h.sync.Sync(ctx, h.allTables(t), []string{"EN"}))

	assert.Equal(t, int32(0), h.up.total.Load())
	assert.Same(t, before, h.snaps.Current())
	assert.Equal(t, synchronizer.RunUpToDate, h.rec.last().Status)
}

func TestSync_RestartRebuildsFromCache(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerStartup))

	h.restart()
	h.up.reset()
	require.Nil(t, h.snaps.Current())

	require.NoError(t, h.sync.Sync(ctx, h.allTables(t), []string{"EN"}))
	assert.Equal(t, int32(0), h.up.total.Load())

	text, ok := h.snaps.Text("EN", 1001)
	require.True(t, ok)
	assert.Equal(t, "Sword", text)
	assert.True(t, h.snaps.HasTable("Weapon"))
}

func TestCheckForUpdate(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	changed, err := h.sync.CheckForUpdate(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "no fingerprint was persisted yet")

	changed, err = h.sync.CheckForUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	h.restart()
	changed, err = h.sync.CheckForUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "fingerprint survives a restart")

	h.up.setRevision("r2")
	changed, err = h.sync.CheckForUpdate(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "r2", h.sync.Status().Upstream)
}

func TestRefresh_NewRevisionRefetches(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))

	h.up.reset()
	h.up.setRevision("r2")
	h.up.setFile(weaponPath, `[{"a": 101, "b": 1001, "c": [1, 2, 3]}, {"a": 103, "b": 1003, "c": [7]}]`)
	h.up.setFile(textEN, `{"1001": "Sword", "1003": "Spear", "2001": "Traveler"}`)

	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerScheduled))
	assert.Equal(t, "r2", h.snaps.Current().Revision)
	assert.Equal(t, 1, h.up.callsFor(weaponPath))
	assert.Equal(t, 1, h.up.callsFor(avatarPath))

	text, ok := h.snaps.Text("EN", 1003)
	require.True(t, ok)
	assert.Equal(t, "Spear", text)
}

func TestRefresh_NewRevisionResetsDecoderMemo(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	decoder := schema.NewDecoder(zap.NewNop())
	tmpl, err := schema.NewRegistry(h.templates, zap.NewNop()).Get(ctx, "Weapon")
	require.NoError(t, err)
	_, _, err = decoder.Decode(tmpl, []any{map[string]any{"x": json.Number("101"), "y": json.Number("1001"), "z": []any{}}}, schema.Options{AllowPartial: true})
	require.NoError(t, err)
	require.Equal(t, 1, decoder.Len())

	client := upstream.New(upstream.Config{
		RevisionURL: h.up.srv.URL + "/commits",
		FileURL:     h.up.srv.URL + "/raw/{revision}/{path}",
	}, zap.NewNop())
	syncer := synchronizer.New(h.cfg, h.manifest, client, h.cache,
		schema.NewRegistry(h.templates, zap.NewNop()), h.snaps, zap.NewNop(),
		synchronizer.WithRetrier(retry.NewRetrier(retry.WithDelayScale(0))),
		synchronizer.WithDecoder(decoder),
	)

	require.NoError(t, syncer.Refresh(ctx, synchronizer.TriggerManual))
	assert.Equal(t, 0, decoder.Len(), "entries from before r1 are dropped")

	h.up.setRevision("r2")
	h.up.setFile(weaponPath, `[{"k": 101, "m": 1001, "n": [1, 2, 3]}]`)
	require.NoError(t, syncer.Refresh(ctx, synchronizer.TriggerManual))
	assert.Equal(t, "r2", h.snaps.Current().Revision)
	assert.Equal(t, 0, decoder.Len())
}

func TestSync_MalformedTextMap(t *testing.T) {
	malformed := []byte(`{"1001": "Sword", "1002": 42}`)

	t.Run("RecoversAfterOneRefetch", func(t *testing.T) {
		h := newHarness(t, 4)
		good := h.up.file(textEN)
		h.up.setHook(textEN, func(call int) (int, []byte) {
			if call == 1 {
				return http.StatusOK, malformed
			}
			return http.StatusOK, good
		})

		require.NoError(t, h.sync.Refresh(context.Background(), synchronizer.TriggerManual))
		assert.Equal(t, 2, h.up.callsFor(textEN))
		text, ok := h.snaps.Text("EN", 1002)
		require.True(t, ok)
		assert.Equal(t, "Bow", text)
	})

	t.Run("SurfacesStructuralErrorAndKeepsSnapshot", func(t *testing.T) {
		h := newHarness(t, 4)
		ctx := context.Background()
		require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))

		h.up.reset()
		h.up.setRevision("r2")
		h.up.setHook(textEN, func(int) (int, []byte) { return http.StatusOK, malformed })

		err := h.sync.Refresh(ctx, synchronizer.TriggerManual)
		require.Error(t, err)
		assert.True(t, retry.IsCategory(err, retry.CategoryStructure))
		assert.Equal(t, 2, h.up.callsFor(textEN))

		assert.Equal(t, "r1", h.snaps.Current().Revision)
		status := h.sync.Status()
		assert.Equal(t, "r1", status.Revision)
		assert.Equal(t, "r2", status.Upstream)
		assert.NotEmpty(t, status.LastError)
		assert.Equal(t, synchronizer.RunFailed, h.rec.last().Status)
	})
}

func TestSync_DroppedTextMapConnection(t *testing.T) {
	h := newHarness(t, 4)
	good := h.up.file(textEN)
	h.up.setHook(textEN, func(call int) (int, []byte) {
		if call <= 2 {
			return statusDropped, []byte(`{"1001": "Sword", "10`)
		}
		return http.StatusOK, good
	})

	require.NoError(t, h.sync.Refresh(context.Background(), synchronizer.TriggerManual))
	assert.Equal(t, 3, h.up.callsFor(textEN))
	text, ok := h.snaps.Text("EN", 1002)
	require.True(t, ok)
	assert.Equal(t, "Bow", text)
	assert.Equal(t, synchronizer.RunPublished, h.rec.last().Status)
}

func TestAsset(t *testing.T) {
	ctx := context.Background()

	t.Run("CorruptedCacheIsFetchedOnce", func(t *testing.T) {
		h := newHarness(t, 4)
		require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))

		key := manifest.Asset{Name: iconName}.LocalKey()
		require.NoError(t, h.cache.Write(ctx, key, strings.NewReader(string(pngBody[:20]))))
		h.up.reset()

		data, err := h.sync.Asset(ctx, iconName)
		require.NoError(t, err)
		assert.Equal(t, pngBody, data)
		assert.Equal(t, 1, h.up.callsFor(iconPath))

		_, err = h.sync.Asset(ctx, iconName)
		require.NoError(t, err)
		assert.Equal(t, 1, h.up.callsFor(iconPath), "healed copy is served from the cache")
	})

	t.Run("CorruptedDownloadIsRetriedOnce", func(t *testing.T) {
		h := newHarness(t, 4)
		h.up.setHook(iconPath, func(call int) (int, []byte) {
			if call == 1 {
				return http.StatusOK, pngBody[:len(pngBody)-4]
			}
			return http.StatusOK, pngBody
		})

		data, err := h.sync.Asset(ctx, iconName)
		require.NoError(t, err)
		assert.Equal(t, pngBody, data)
		assert.Equal(t, 2, h.up.callsFor(iconPath))
	})

	t.Run("PersistentCorruptionSurfaces", func(t *testing.T) {
		h := newHarness(t, 4)
		h.up.setHook(iconPath, func(int) (int, []byte) { return http.StatusOK, []byte("not a png") })

		_, err := h.sync.Asset(ctx, iconName)
		require.Error(t, err)
		assert.True(t, retry.IsCategory(err, retry.CategoryIntegrity))
		assert.Equal(t, 2, h.up.callsFor(iconPath))
	})

	t.Run("Undeclared", func(t *testing.T) {
		h := newHarness(t, 4)
		_, err := h.sync.Asset(ctx, "icons/unknown.png")
		assert.True(t, retry.IsCategory(err, retry.CategoryNotFound))
		assert.Equal(t, int32(0), h.up.total.Load())
	})

	t.Run("FailedAssetDoesNotBlockPublish", func(t *testing.T) {
		h := newHarness(t, 4)
		h.up.setHook(iconPath, func(int) (int, []byte) { return http.StatusNotFound, nil })

		require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))
		assert.Equal(t, map[string]bool{iconName: false}, h.snaps.Current().Assets)
		assert.Equal(t, []string{iconName}, h.sync.Status().AssetErrors)
	})
}

func TestSync_ConcurrentCallsAreFenced(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	gate := make(chan struct{})
	weapons := h.up.file(weaponPath)
	h.up.setHook(weaponPath, func(int) (int, []byte) {
		<-gate
		return http.StatusOK, weapons
	})

	tables := h.allTables(t)
	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.sync.Sync(ctx, tables, []string{"EN"})
		}()
	}

	require.Eventually(t, func() bool { return h.up.callsFor(weaponPath) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, h.sync.Status().InProgress)
	close(gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.up.callsFor(weaponPath))
	assert.Equal(t, 1, h.up.callsFor(textEN))
	assert.Equal(t, 1, h.up.revisionCalls())
	assert.False(t, h.sync.Status().InProgress)
}

func TestSync_RevisionChangeDuringRunResyncs(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	gate := make(chan struct{})
	weapons := h.up.file(weaponPath)
	h.up.setHook(weaponPath, func(call int) (int, []byte) {
		if call == 1 {
			<-gate
		}
		return http.StatusOK, weapons
	})

	done := make(chan error, 1)
	go func() {
		done <- h.sync.Refresh(ctx, synchronizer.TriggerScheduled)
	}()

	require.Eventually(t, func() bool { return h.up.callsFor(weaponPath) == 1 }, 5*time.Second, 10*time.Millisecond)
	h.up.setRevision("r2")
	changed, err := h.sync.CheckForUpdate(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	close(gate)

	require.NoError(t, <-done)
	assert.Equal(t, "r2", h.snaps.Current().Revision)
	assert.Equal(t, []string{synchronizer.RunPublished, synchronizer.RunPublished}, h.rec.statuses())
	assert.Equal(t, 2, h.up.callsFor(weaponPath))
}

func TestSync_DecodeFailureKeepsSnapshot(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))

	h.up.setRevision("r2")
	h.up.setFile(weaponPath, `[{"x": "unrelated", "y": "shape"}]`)

	err := h.sync.Refresh(ctx, synchronizer.TriggerManual)
	require.Error(t, err)
	assert.True(t, retry.IsCategory(err, retry.CategoryStructure))
	var de *schema.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Weapon", de.Table)
	assert.Equal(t, []string{"x", "y"}, de.SampleKeys)

	assert.Equal(t, "r1", h.snaps.Current().Revision)
	assert.Contains(t, h.sync.Status().LastError, "Weapon")
	assert.Equal(t, synchronizer.RunFailed, h.rec.last().Status)
}

func TestSync_FailedRunKeepsLedger(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))

	h.up.reset()
	h.up.setRevision("r2")
	h.up.setHook(textEN, func(int) (int, []byte) { return http.StatusServiceUnavailable, nil })

	err := h.sync.Refresh(ctx, synchronizer.TriggerManual)
	require.Error(t, err)
	assert.True(t, retry.IsCategory(err, retry.CategoryServer))
	assert.Equal(t, "r1", h.snaps.Current().Revision)
	require.Equal(t, 1, h.up.callsFor(weaponPath))
	require.Equal(t, 1, h.up.callsFor(avatarPath))

	h.up.reset()
	h.up.setHook(textEN, nil)
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))
	assert.Equal(t, "r2", h.snaps.Current().Revision)
	assert.Equal(t, 0, h.up.callsFor(weaponPath), "already fetched at r2")
	assert.Equal(t, 0, h.up.callsFor(avatarPath), "already fetched at r2")
	assert.Equal(t, 1, h.up.callsFor(textEN))
}

func TestSync_MissingTemplate(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	require.NoError(t, h.templates.Remove(ctx, schema.TemplateKey("Weapon")))

	err := h.sync.Refresh(ctx, synchronizer.TriggerManual)
	require.Error(t, err)
	assert.True(t, retry.IsCategory(err, retry.CategoryTemplate))
	assert.Nil(t, h.snaps.Current())
}

func TestVerifyCache(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))

	report, err := h.sync.VerifyCache(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, 4, report.Checked)

	weaponKey := manifest.Table{Name: "Weapon"}.LocalKey()
	iconKey := manifest.Asset{Name: iconName}.LocalKey()
	require.NoError(t, h.cache.Write(ctx, weaponKey, strings.NewReader(`[{"a": 1`)))
	require.NoError(t, h.cache.Remove(ctx, iconKey))

	report, err = h.sync.VerifyCache(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{weaponKey}, report.Corrupted)
	assert.Equal(t, []string{iconKey}, report.Missing)
	assert.Empty(t, report.Removed)

	report, err = h.sync.VerifyCache(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{weaponKey}, report.Removed)

	h.up.reset()
	require.NoError(t, h.sync.Refresh(ctx, synchronizer.TriggerManual))
	assert.Equal(t, 1, h.up.callsFor(weaponPath))
	assert.Equal(t, 1, h.up.callsFor(iconPath))
	assert.Equal(t, 0, h.up.callsFor(avatarPath))

	report, err = h.sync.VerifyCache(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
}

func TestStatus(t *testing.T) {
	h := newHarness(t, 4)
	before := h.sync.Status()
	assert.Empty(t, before.Revision)
	assert.Nil(t, before.LastSync)

	require.NoError(t, h.sync.Refresh(context.Background(), synchronizer.TriggerManual))

	st := h.sync.Status()
	assert.Equal(t, "r1", st.Revision)
	assert.Equal(t, "r1", st.Upstream)
	assert.Equal(t, []string{"Avatar", "Weapon"}, st.Tables)
	assert.Equal(t, []string{"EN"}, st.Languages)
	assert.Equal(t, map[string]float64{"Weapon": 1}, st.Confidence)
	assert.NotNil(t, st.LastSync)
	assert.Empty(t, st.LastError)
	assert.False(t, st.InProgress)
}
