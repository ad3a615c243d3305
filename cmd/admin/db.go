package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	from := fs.Uint64("from", 0, "first round (rounds)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	var runErr error
	switch q {
	case "snapshots":
		runErr = querySnapshots(db, *limit)
	case "rounds":
		runErr = queryRounds(db, `SELECT round,movements,leader,terminated,fault,digest FROM rounds WHERE round>=? ORDER BY round LIMIT ?`, *from, *limit)
	case "faults":
		runErr = queryRounds(db, `SELECT round,movements,leader,terminated,fault,digest FROM rounds WHERE fault IS NOT NULL AND round>=? ORDER BY round LIMIT ?`, *from, *limit)
	case "tuning":
		runErr = queryTuning(db, *limit)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want snapshots|rounds|faults|tuning)")
		os.Exit(2)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "query:", runErr)
		os.Exit(1)
	}
}

func querySnapshots(db *sql.DB, limit int) error {
	rows, err := db.Query(`SELECT round,path,seed,particles,tiles,movements,leader,fault,recorded_at FROM snapshots ORDER BY round DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Round      int64  `json:"round"`
			Path       string `json:"path"`
			Seed       int64  `json:"seed"`
			Particles  int    `json:"particles"`
			Tiles      int    `json:"tiles"`
			Movements  int64  `json:"movements"`
			Leader     int    `json:"leader"`
			Fault      string `json:"fault,omitempty"`
			RecordedAt string `json:"recorded_at"`
		}
		var fault sql.NullString
		if err := rows.Scan(&r.Round, &r.Path, &r.Seed, &r.Particles, &r.Tiles, &r.Movements, &r.Leader, &fault, &r.RecordedAt); err != nil {
			return err
		}
		r.Fault = fault.String
		printJSON(r)
	}
	return rows.Err()
}

func queryRounds(db *sql.DB, query string, from uint64, limit int) error {
	rows, err := db.Query(query, int64(from), limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Round      int64  `json:"round"`
			Movements  int64  `json:"movements"`
			Leader     int    `json:"leader"`
			Terminated bool   `json:"terminated"`
			Fault      string `json:"fault,omitempty"`
			Digest     string `json:"digest"`
		}
		var terminated int
		var fault sql.NullString
		if err := rows.Scan(&r.Round, &r.Movements, &r.Leader, &terminated, &fault, &r.Digest); err != nil {
			return err
		}
		r.Terminated = terminated != 0
		r.Fault = fault.String
		printJSON(r)
	}
	return rows.Err()
}

func queryTuning(db *sql.DB, limit int) error {
	rows, err := db.Query(`SELECT digest,json,updated_at FROM tuning ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var digest, raw, updated string
		if err := rows.Scan(&digest, &raw, &updated); err != nil {
			return err
		}
		fmt.Printf("%s %s %s\n", updated, digest, raw)
	}
	return rows.Err()
}
