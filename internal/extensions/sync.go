package extensions

import "context"

// SyncResult summarizes one filesystem reconcile pass.
type SyncResult struct {
	Synced  int
	Active  []string
	Skipped []LoadError
}

// SyncFromDisk rewrites the stored extension records from the extensions
// root. Directory names stay authoritative for active state. An existing
// record keeps its installed flag, so an extension left staged after a
// failed install is not silently promoted to installed.
func SyncFromDisk(ctx context.Context, states *StateManager, repo RepositoryPort) (*SyncResult, error) {
	entries, err := states.Scan()
	if err != nil {
		return nil, err
	}

	res := &SyncResult{}
	var activeIDs []string
	for _, e := range entries {
		if e.State == StateHidden {
			continue
		}
		manifest, err := LoadManifest(e.Path)
		if err != nil {
			res.Skipped = append(res.Skipped, LoadError{ExtensionID: e.ID, Err: err})
			continue
		}
		active := e.State == StateActive
		if active {
			activeIDs = append(activeIDs, e.ID)
		}
		installed := true
		if existing, err := repo.Get(ctx, manifest.ID); err == nil {
			installed = existing.IsInstalled
		}
		if _, err := repo.Upsert(ctx, Extension{
			ExtensionID: manifest.ID,
			Name:        manifest.Name,
			Version:     manifest.Version,
			Author:      manifest.Author,
			Kind:        manifest.Kind,
			InstallPath: e.Path,
			IsInstalled: installed,
			IsActive:    active,
		}); err != nil {
			return res, err
		}
		res.Synced++
	}
	if err := repo.ReconcileActive(ctx, activeIDs); err != nil {
		return res, err
	}
	res.Active = activeIDs
	return res, nil
}
