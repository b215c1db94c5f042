package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/OCAP2/markertracker/internal/database"
	"github.com/OCAP2/markertracker/internal/model"
	"github.com/OCAP2/markertracker/internal/model/convert"
)

// sessionRow is one line of the sessions listing.
type sessionRow struct {
	File      string
	SessionID string
	Start     time.Time
	Duration  time.Duration
	Markers   int
	Sightings int64
	Snapshots int64
}

// readSessions opens one SQLite dump and summarizes every session in it.
func readSessions(path string) ([]sessionRow, error) {
	m := database.NewManager(newZerolog())
	if err := m.Connect(path); err != nil {
		return nil, err
	}
	defer m.Close()

	var sessions []model.Session
	if err := m.DB.Preload("Markers").Order("start_time").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		c := convert.SessionToCore(s)
		row := sessionRow{
			File:      path,
			SessionID: c.ID,
			Start:     c.StartTime,
			Markers:   len(s.Markers),
		}
		if !c.EndTime.IsZero() {
			row.Duration = c.EndTime.Sub(c.StartTime)
		}
		if err := m.DB.Model(&model.MarkerSighting{}).Where("session_id = ?", s.ID).Count(&row.Sightings).Error; err != nil {
			return nil, fmt.Errorf("failed to count sightings: %w", err)
		}
		if err := m.DB.Model(&model.Snapshot{}).Where("session_id = ?", s.ID).Count(&row.Snapshots).Error; err != nil {
			return nil, fmt.Errorf("failed to count snapshots: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// listSessions prints the sessions found in every .db file under dir.
func listSessions(w io.Writer, dir string) error {
	paths, err := database.ListDumps(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(paths) == 0 {
		fmt.Fprintf(w, "No SQLite dumps in %s\n", dir)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSESSION\tSTART\tDURATION\tMARKERS\tSIGHTINGS\tSNAPSHOTS")
	for _, path := range paths {
		rows, err := readSessions(path)
		if err != nil {
			Logger.Warn("Skipping unreadable dump", "path", path, "error", err)
			continue
		}
		for _, r := range rows {
			duration := "running"
			if r.Duration > 0 {
				duration = r.Duration.Round(time.Second).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
				r.File, r.SessionID, r.Start.Format(time.RFC3339), duration, r.Markers, r.Sightings, r.Snapshots)
		}
	}
	return tw.Flush()
}
