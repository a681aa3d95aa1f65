package main

import (
	"strings"

	"gamevault/internal/macro"
)

// GetKeyMappings returns every stored key mapping.
func (a *App) GetKeyMappings() ([]macro.KeyMapping, error) {
	if err := a.engineReady(); err != nil {
		return nil, err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	list, err := a.store.ListKeyMappings(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []macro.KeyMapping{}
	}
	return list, nil
}

// SaveKeyMapping creates or updates a mapping and re-registers shortcuts.
func (a *App) SaveKeyMapping(mapping macro.KeyMapping) (macro.KeyMapping, error) {
	if err := a.engineReady(); err != nil {
		return macro.KeyMapping{}, err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	saved, err := a.store.SaveKeyMapping(ctx, mapping)
	if err != nil {
		return macro.KeyMapping{}, err
	}
	a.requestReconcile()
	return saved, nil
}

// DeleteKeyMapping removes a mapping and re-registers shortcuts.
func (a *App) DeleteKeyMapping(id string) error {
	if err := a.engineReady(); err != nil {
		return err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	if err := a.store.DeleteKeyMapping(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	a.requestReconcile()
	return nil
}

// ToggleKeyMapping sets the active flag of one mapping.
func (a *App) ToggleKeyMapping(id string, active bool) error {
	if err := a.engineReady(); err != nil {
		return err
	}
	ctx, cancel := a.storeContext()
	defer cancel()
	if err := a.store.SetKeyMappingActive(ctx, strings.TrimSpace(id), active); err != nil {
		return err
	}
	a.requestReconcile()
	return nil
}
