package main

import (
	"io"

	applog "l2book/infra/log"
	"l2book/infra/runstore"
	"l2book/service"
)

// remember compares rep with the previous stored run, stores it, then drops
// all but the newest keep runs. keep == 0 retains everything.
func remember(dir string, keep int, rep service.Report, w io.Writer, logger applog.Logger) error {
	store, err := runstore.Open[service.Report](dir)
	if err != nil {
		return err
	}
	defer store.Close()

	prev, ok, err := store.Last()
	if err != nil {
		return err
	}
	if ok {
		if err := rep.WriteComparison(w, prev); err != nil {
			return err
		}
	}
	if err := store.Put(rep.StartedAt.UnixNano(), rep); err != nil {
		return err
	}

	if keep > 0 {
		n, err := store.Prune(keep)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Debug().Int("dropped", n).Int("keep", keep).Msg("run history pruned")
		}
	}
	return nil
}

func showHistory(dir string, w io.Writer) error {
	store, err := runstore.Open[service.Report](dir)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List()
	if err != nil {
		return err
	}
	return service.WriteHistory(w, runs)
}
