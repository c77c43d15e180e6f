package store

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    total INTEGER NOT NULL,
    succeeded INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    success BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);

CREATE TABLE IF NOT EXISTS outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT NOT NULL REFERENCES batches(id),
    position INTEGER NOT NULL,
    game_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    revision TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    attempted_at TIMESTAMP,
    errors TEXT,
    warnings TEXT
);

CREATE INDEX IF NOT EXISTS idx_outcomes_batch_id ON outcomes(batch_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_game_id ON outcomes(game_id);
`
