// Package sync implements the bidirectional playlist synchronization
// core: the conversion stage, backup rotation, suppression window, the
// startup reconciliation pass, and the live change-notification entry
// points that tie them together.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	syncerrors "github.com/legandy/playlistsync/internal/errors"
	"github.com/legandy/playlistsync/internal/playlist"
	"github.com/legandy/playlistsync/internal/state"
)

const (
	conversionDirPerm = fs.FileMode(0o755)
	playlistFilePerm  = fs.FileMode(0o644)
)

// Options configures a sync engine. All folder paths must be absolute.
type Options struct {
	PCDir         string
	PhoneDir      string
	ConversionDir string

	// ProcessDelay is the debounce window: notifications for the same
	// identity arriving within it coalesce into one reconciliation.
	ProcessDelay time.Duration

	// BlockDuration is how long a freshly written destination path
	// ignores its own change notification.
	BlockDuration time.Duration

	Codec   playlist.Codec
	Backups *BackupStore

	// History is optional; when set, accepted syncs and resolved
	// conflicts are recorded there.
	History *state.Store

	Logger *slog.Logger
}

// pendingChange is a debounced notification awaiting its delay. Later
// notifications for the same identity overwrite side and path (last
// event wins) and re-arm the timer.
type pendingChange struct {
	timer *time.Timer
	side  Side
	path  string
}

// Engine keeps the two playlist folders mirror images of each other
// through the conversion stage. Notifications for different identities
// proceed concurrently; notifications for the same identity are
// serialized. A failed identity is not retried automatically -- the
// next external change notification is the retry trigger.
type Engine struct {
	opts        Options
	logger      *slog.Logger
	stage       *ConversionStage
	suppression *SuppressionWindow

	mu      gosync.Mutex
	pending map[playlist.Identity]*pendingChange
	locks   map[playlist.Identity]*gosync.Mutex
	closed  bool

	wg gosync.WaitGroup
}

// New creates an engine, ensures the conversion folder exists, and
// rebuilds the staged baselines by re-fingerprinting the conversion
// copies left by a previous run.
func New(opts Options) (*Engine, error) {
	if opts.PCDir == "" || opts.PhoneDir == "" || opts.ConversionDir == "" {
		return nil, fmt.Errorf("%w: engine requires pc, phone, and conversion folders", syncerrors.ErrConfigIncomplete)
	}

	if opts.Backups == nil {
		return nil, fmt.Errorf("%w: engine requires a backup store", syncerrors.ErrConfigIncomplete)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(opts.ConversionDir, conversionDirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating conversion dir: %v", syncerrors.ErrStoreUnavailable, err)
	}

	e := &Engine{
		opts:        opts,
		logger:      opts.Logger,
		stage:       NewConversionStage(),
		suppression: NewSuppressionWindow(),
		pending:     make(map[playlist.Identity]*pendingChange),
		locks:       make(map[playlist.Identity]*gosync.Mutex),
	}

	if err := e.loadStage(); err != nil {
		return nil, err
	}

	return e, nil
}

// loadStage re-fingerprints every conversion copy on disk so the
// baseline survives restarts without a separate persistence format.
func (e *Engine) loadStage() error {
	entries, err := os.ReadDir(e.opts.ConversionDir)
	if err != nil {
		return fmt.Errorf("%w: reading conversion dir: %v", syncerrors.ErrStoreUnavailable, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !playlist.IsPlaylistFile(entry.Name()) {
			continue
		}

		path := filepath.Join(e.opts.ConversionDir, entry.Name())

		v, err := playlist.LoadVersion(path, playlist.OriginConversion, e.opts.PhoneDir)
		if err != nil {
			e.logger.Warn("skipping unreadable conversion copy",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)

			continue
		}

		e.stage.Commit(v.Identity, v)
	}

	return nil
}

// FileChanged is the live-watch entry point: a change notification for
// the named playlist file on the given side. The change is debounced by
// the process delay; duplicate and out-of-order notifications within
// the window coalesce into a single reconciliation.
func (e *Engine) FileChanged(name string, side Side) {
	if !playlist.IsPlaylistFile(name) || playlist.IsVersionedExport(name) {
		return
	}

	path := filepath.Join(e.sideDir(side), name)
	if e.suppression.IsSuppressed(path) {
		e.logger.Debug("change suppressed after own write",
			slog.String("path", path),
			slog.String("side", string(side)),
		)

		return
	}

	id := playlist.IdentityOf(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	if p, ok := e.pending[id]; ok {
		p.side = side
		p.path = path
		// Reset can race a timer that already fired but whose callback
		// has not yet taken e.mu. The callback only acts while it still
		// owns the map entry, so the entry is consumed exactly once no
		// matter how many timer runs the re-arm produces.
		p.timer.Reset(e.opts.ProcessDelay)

		return
	}

	p := &pendingChange{side: side, path: path}
	e.pending[id] = p

	e.wg.Add(1)
	p.timer = time.AfterFunc(e.opts.ProcessDelay, func() {
		e.mu.Lock()
		if e.pending[id] != p {
			// The entry was already consumed by an earlier run of this
			// callback or by Close; whoever consumed it balances the
			// wait group.
			e.mu.Unlock()
			return
		}

		delete(e.pending, id)
		side, path := p.side, p.path
		closed := e.closed
		e.mu.Unlock()

		defer e.wg.Done()

		if closed {
			return
		}

		e.reconcile(id, side, path)
	})
}

// FileRemoved handles a deletion notification. A playlist gone from
// both sides has its conversion record dropped (backups are kept); a
// single-side deletion keeps everything, and a later full sync
// recreates the missing copy from the surviving side.
func (e *Engine) FileRemoved(name string, side Side) {
	if !playlist.IsPlaylistFile(name) || playlist.IsVersionedExport(name) {
		return
	}

	path := filepath.Join(e.sideDir(side), name)
	// Atomic replacement surfaces as remove+create on some platforms;
	// the engine's own writes must not look like deletions.
	if e.suppression.IsSuppressed(path) {
		return
	}

	id := playlist.IdentityOf(name)

	lock := e.identityLock(id)
	lock.Lock()
	defer lock.Unlock()

	if e.sideHas(SidePC, id) || e.sideHas(SidePhone, id) {
		e.logger.Info("playlist removed on one side; keeping counterpart",
			slog.String("identity", string(id)),
			slog.String("side", string(side)),
		)

		return
	}

	e.dropIdentity(id)
}

// RunFullSync performs the startup reconciliation pass: extension
// normalization, then a comparison of every identity present on either
// side (or in the stage) against the staged baseline. It is also the
// manual trigger exposed to front ends. Per-identity failures are
// logged and skipped; only cancellation aborts the pass.
func (e *Engine) RunFullSync(ctx context.Context) error {
	e.logger.Info("full reconciliation started")

	for _, side := range []Side{SidePC, SidePhone} {
		e.normalizeExtensions(side)
	}

	files := map[Side]map[playlist.Identity]string{
		SidePC:    e.listSide(SidePC),
		SidePhone: e.listSide(SidePhone),
	}

	seen := make(map[playlist.Identity]struct{})
	for _, side := range []Side{SidePC, SidePhone} {
		for id := range files[side] {
			seen[id] = struct{}{}
		}
	}

	for _, id := range e.stage.Identities() {
		seen[id] = struct{}{}
	}

	ids := make([]playlist.Identity, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.reconcileIdentity(id, files[SidePC][id], files[SidePhone][id])
	}

	e.logger.Info("full reconciliation complete", slog.Int("playlists", len(ids)))

	return nil
}

// Close stops pending debounce timers and waits for in-flight
// reconciliations to finish so no playlist write is cut short.
func (e *Engine) Close() {
	e.mu.Lock()

	e.closed = true

	for id, p := range e.pending {
		if p.timer.Stop() {
			delete(e.pending, id)
			e.wg.Done()
		}
		// A timer that already fired delivers one more callback run;
		// that run finds closed set, consumes its entry without
		// reconciling, and balances the wait group itself.
	}

	e.mu.Unlock()

	e.wg.Wait()
}

// reconcile runs the debounced live path for one identity: read,
// fingerprint, compare against the stage, and on a real change accept
// the new version. Errors park the identity until the next notification.
func (e *Engine) reconcile(id playlist.Identity, side Side, path string) {
	lock := e.identityLock(id)
	lock.Lock()
	defer lock.Unlock()

	src, err := playlist.LoadVersion(path, originOf(side), e.sideDir(side))
	if err != nil {
		e.logger.Warn("source unreadable; waiting for next change",
			slog.String("identity", string(id)),
			slog.String("error", err.Error()),
		)

		return
	}

	if fp, ok := e.stage.CurrentFingerprint(id); ok && fp == src.Fingerprint {
		e.logger.Debug("no content change detected",
			slog.String("identity", string(id)),
			slog.String("side", string(side)),
		)

		return
	}

	if err := e.accept(id, src, side); err != nil {
		e.logger.Warn("sync failed; waiting for next change",
			slog.String("identity", string(id)),
			slog.String("error", err.Error()),
		)
	}
}

// reconcileIdentity runs the startup-pass comparison for one identity.
func (e *Engine) reconcileIdentity(id playlist.Identity, pcPath, phonePath string) {
	lock := e.identityLock(id)
	lock.Lock()
	defer lock.Unlock()

	pc, pcVersion := e.loadSide(SidePC, pcPath)
	phone, phoneVersion := e.loadSide(SidePhone, phonePath)

	baseline, haveBaseline := e.stage.CurrentFingerprint(id)

	decision := Decide(pc, phone, baseline, haveBaseline)

	if decision == DecisionConflict {
		decision = e.resolveConflict(id, pc, phone, pcVersion, phoneVersion)
	}

	var (
		src     *playlist.Version
		srcSide Side
	)

	switch decision {
	case DecisionNone:
		return

	case DecisionDrop:
		e.dropIdentity(id)
		return

	case DecisionPushPC:
		src, srcSide = pcVersion, SidePC

	case DecisionPushPhone:
		src, srcSide = phoneVersion, SidePhone
	}

	if src == nil {
		return // side vanished between listing and read; next pass will catch it
	}

	if err := e.accept(id, src, srcSide); err != nil {
		e.logger.Warn("reconciliation failed",
			slog.String("identity", string(id)),
			slog.String("error", err.Error()),
		)
	}
}

// resolveConflict applies the most-recently-modified policy, snapshots
// both versions before the loser is overwritten, and records the
// conflict. Informational only: conflicts never block the pass.
func (e *Engine) resolveConflict(id playlist.Identity, pc, phone SideFile, pcVersion, phoneVersion *playlist.Version) Decision {
	decision := Winner(pc, phone)

	winner := SidePC
	if decision == DecisionPushPhone {
		winner = SidePhone
	}

	// Both sides are snapshotted, not just the eventual loser, so a
	// discarded concurrent edit is always recoverable.
	for _, v := range []*playlist.Version{pcVersion, phoneVersion} {
		if v == nil {
			continue
		}

		if err := e.opts.Backups.Snapshot(id, v); err != nil {
			e.logger.Warn("conflict backup failed",
				slog.String("identity", string(id)),
				slog.String("error", err.Error()),
			)
		}
	}

	added, removed := diffCounts(pcVersion, phoneVersion, e.opts.PCDir)

	e.logger.Info("conflict detected; newest content wins",
		slog.String("identity", string(id)),
		slog.String("winner", string(winner)),
		slog.Int("lines_added", added),
		slog.Int("lines_removed", removed),
	)

	if e.opts.History != nil {
		rec := state.ConflictRecord{
			Identity:         string(id),
			Winner:           string(winner),
			PCFingerprint:    pc.Fingerprint,
			PhoneFingerprint: phone.Fingerprint,
			LinesAdded:       added,
			LinesRemoved:     removed,
			ResolvedAt:       time.Now().UnixNano(),
		}
		if err := e.opts.History.AppendConflict(rec); err != nil {
			e.logger.Warn("recording conflict failed", slog.String("error", err.Error()))
		}
	}

	return decision
}

// accept takes a newly read source version as the truth for its
// identity: snapshot the superseded conversion copy, stage the
// converted form, and push it to the opposite side. The suppression
// window is armed only after a successful destination write so a failed
// write is never masked when it is retried.
func (e *Engine) accept(id playlist.Identity, src *playlist.Version, side Side) error {
	if prev := e.stage.Record(id); prev != nil {
		if err := e.opts.Backups.Snapshot(id, prev); err != nil {
			e.logger.Warn("backup failed",
				slog.String("identity", string(id)),
				slog.String("error", err.Error()),
			)
		}
	}

	relLines, warnings := e.opts.Codec.RelativeLines(src.Lines, e.sideDir(side))
	for _, w := range warnings {
		e.logger.Warn("track path outside base folder; line passed through",
			slog.String("identity", string(id)),
			slog.String("warning", w.Error()),
		)
	}

	// Conversion copies share the phone side's relative convention, so
	// they fingerprint against the phone folder. Lines outside the base
	// stay absolute and hash identically on every side.
	conv := playlist.NewVersion(id, relLines, playlist.OriginConversion, e.opts.PhoneDir)

	convPath := filepath.Join(e.opts.ConversionDir, id.FileName())
	if err := writeFileAtomic(convPath, []byte(conv.Content())); err != nil {
		return fmt.Errorf("staging conversion copy: %w", err)
	}

	e.stage.Commit(id, conv)

	dest := side.Other()
	destPath := e.sidePath(dest, id)

	destLines := relLines
	if dest == SidePC {
		destLines, _ = e.opts.Codec.AbsoluteLines(relLines, e.opts.PCDir)
	}

	destVersion := playlist.NewVersion(id, destLines, originOf(dest), e.sideDir(dest))

	// A destination that already matches needs no write, and writing it
	// anyway would arm a pointless suppression window.
	if cur, err := playlist.LoadVersion(destPath, originOf(dest), e.sideDir(dest)); err == nil && cur.Fingerprint == conv.Fingerprint {
		e.recordSync(id, conv, src.Origin)
		return nil
	}

	if err := writeFileAtomic(destPath, []byte(destVersion.Content())); err != nil {
		return fmt.Errorf("%w: %s: %v", syncerrors.ErrDestinationWrite, destPath, err)
	}

	e.suppression.Arm(destPath, e.opts.BlockDuration)
	e.recordSync(id, conv, src.Origin)

	e.logger.Info("playlist pushed",
		slog.String("identity", string(id)),
		slog.String("from", string(side)),
		slog.String("to", string(dest)),
		slog.Int("tracks", conv.TrackCount()),
	)

	return nil
}

func (e *Engine) recordSync(id playlist.Identity, conv *playlist.Version, origin playlist.Origin) {
	if e.opts.History == nil {
		return
	}

	rec := state.SyncRecord{
		Identity:    string(id),
		Fingerprint: conv.Fingerprint,
		Origin:      string(origin),
		SyncTime:    time.Now().Unix(),
	}
	if err := e.opts.History.SetSyncRecord(rec); err != nil {
		e.logger.Warn("recording sync failed",
			slog.String("identity", string(id)),
			slog.String("error", err.Error()),
		)
	}
}

// dropIdentity removes the staged record and conversion copy for an
// identity gone from both sides. Backups are deliberately kept.
func (e *Engine) dropIdentity(id playlist.Identity) {
	e.stage.Drop(id)

	convPath := filepath.Join(e.opts.ConversionDir, id.FileName())
	if err := os.Remove(convPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("removing conversion copy failed",
			slog.String("identity", string(id)),
			slog.String("error", err.Error()),
		)
	}

	if e.opts.History != nil {
		if err := e.opts.History.DeleteSyncRecord(string(id)); err != nil {
			e.logger.Warn("removing sync record failed", slog.String("error", err.Error()))
		}
	}

	e.logger.Info("playlist gone from both sides; conversion record dropped",
		slog.String("identity", string(id)),
	)
}

// normalizeExtensions renames *.m3u8 files to *.m3u in a side folder.
func (e *Engine) normalizeExtensions(side Side) {
	dir := e.sideDir(side)

	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Warn("reading side folder failed",
			slog.String("side", string(side)),
			slog.String("error", err.Error()),
		)

		return
	}

	for _, entry := range entries {
		name := entry.Name()

		normalized := playlist.NormalizeExtension(name)
		if entry.IsDir() || normalized == name {
			continue
		}

		target := filepath.Join(dir, normalized)
		if _, err := os.Stat(target); err == nil {
			e.logger.Warn("skipping extension rename; target exists",
				slog.String("file", name),
				slog.String("side", string(side)),
			)

			continue
		}

		if err := os.Rename(filepath.Join(dir, name), target); err != nil {
			e.logger.Warn("extension rename failed",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)

			continue
		}

		e.logger.Info("renamed playlist extension",
			slog.String("from", name),
			slog.String("to", normalized),
			slog.String("side", string(side)),
		)
	}
}

// listSide maps each identity in a side folder to its actual file path.
func (e *Engine) listSide(side Side) map[playlist.Identity]string {
	dir := e.sideDir(side)

	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Warn("reading side folder failed",
			slog.String("side", string(side)),
			slog.String("error", err.Error()),
		)

		return nil
	}

	out := make(map[playlist.Identity]string)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !playlist.IsPlaylistFile(name) || playlist.IsVersionedExport(name) {
			continue
		}

		out[playlist.IdentityOf(name)] = filepath.Join(dir, name)
	}

	return out
}

// sideHas reports whether any playlist file in the side folder resolves
// to the identity, regardless of its on-disk casing or extension.
func (e *Engine) sideHas(side Side, id playlist.Identity) bool {
	_, ok := e.listSide(side)[id]

	return ok
}

// sidePath returns the identity's existing file in the side folder, so
// a push overwrites the copy the user actually has (whatever its
// casing) rather than creating a second, case-normalized file next to
// it. Falls back to the canonical name when the side has no copy yet.
func (e *Engine) sidePath(side Side, id playlist.Identity) string {
	if path, ok := e.listSide(side)[id]; ok {
		return path
	}

	return filepath.Join(e.sideDir(side), id.FileName())
}

// loadSide stats and reads one side's copy for the startup pass. A
// missing or unreadable file is treated as absent; the read error is
// logged and the pass continues.
func (e *Engine) loadSide(side Side, path string) (SideFile, *playlist.Version) {
	if path == "" {
		return SideFile{}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return SideFile{}, nil
	}

	v, err := playlist.LoadVersion(path, originOf(side), e.sideDir(side))
	if err != nil {
		e.logger.Warn("side copy unreadable during reconciliation",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return SideFile{}, nil
	}

	return SideFile{
		Exists:      true,
		Path:        path,
		Fingerprint: v.Fingerprint,
		ModTime:     info.ModTime(),
	}, v
}

func (e *Engine) sideDir(side Side) string {
	if side == SidePC {
		return e.opts.PCDir
	}

	return e.opts.PhoneDir
}

func (e *Engine) identityLock(id playlist.Identity) *gosync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[id]
	if !ok {
		lock = &gosync.Mutex{}
		e.locks[id] = lock
	}

	return lock
}

func originOf(side Side) playlist.Origin {
	if side == SidePC {
		return playlist.OriginPC
	}

	return playlist.OriginPhone
}

// diffCounts summarizes how the two conflicting versions differ, in
// canonical track-line terms.
func diffCounts(pcVersion, phoneVersion *playlist.Version, pcDir string) (added, removed int) {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(trackText(pcVersion, pcDir), trackText(phoneVersion, ""), true)
	for _, d := range diffs {
		n := strings.Count(strings.TrimSuffix(d.Text, "\n"), "\n") + 1
		if strings.TrimSpace(d.Text) == "" {
			continue
		}

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}

	return added, removed
}

// trackText renders a version's track lines in canonical relative form
// for diffing.
func trackText(v *playlist.Version, baseDir string) string {
	if v == nil {
		return ""
	}

	var sb strings.Builder

	codec := playlist.Codec{AllowEscapes: true}

	for _, line := range v.Lines {
		if !playlist.IsTrackLine(line) {
			continue
		}

		rel, _ := codec.ToRelative(line, baseDir)
		sb.WriteString(rel)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// writeFileAtomic writes data to a temp file in the destination's
// directory and renames it into place, so a consumer never observes a
// truncated playlist.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpName, playlistFilePerm); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("setting temp file mode: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}
