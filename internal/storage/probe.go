package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"reqspec-backend/internal/config"
)

// Resolution is the outcome of the one-time connection probe: the selected
// method plus the live handle for it. Exactly one of DB and Rest is set.
type Resolution struct {
	Method ConnectionMethod
	DB     *sql.DB
	Rest   *RestClient

	// Detail records how the method was chosen, for diagnostics.
	Detail string
}

// candidate is one backend strategy the probe may settle on.
type candidate struct {
	name string
	try  func(ctx context.Context) (*Resolution, error)
}

// Probe resolves which backend family is live. Resolution happens once per
// adapter lifetime; the result is never re-probed mid-flight.
type Probe struct {
	cfg    config.DatabaseConfig
	logger *zap.Logger
}

// NewProbe creates a probe for the declared backend configuration.
func NewProbe(cfg config.DatabaseConfig, logger *zap.Logger) *Probe {
	return &Probe{cfg: cfg, logger: logger}
}

// Resolve walks the ordered candidate strategies and locks in the first one
// that succeeds. It never fails: the embedded database is the unconditional
// last candidate and has no external dependency.
func (p *Probe) Resolve(ctx context.Context) *Resolution {
	return tryInOrder(ctx, p.candidates(), p.logger)
}

// candidates builds the ordered strategy list for the declared family. The
// embedded family skips remote probing entirely.
func (p *Probe) candidates() []candidate {
	if p.cfg.Family != config.FamilySupabase {
		return []candidate{p.embeddedCandidate()}
	}

	var list []candidate
	for i, dsn := range p.cfg.ConnectionOptions {
		dsn := dsn
		list = append(list, candidate{
			name: fmt.Sprintf("direct-sql[%d]", i),
			try: func(ctx context.Context) (*Resolution, error) {
				db, err := openDirect(ctx, dsn, p.cfg.ConnectTimeout)
				if err != nil {
					return nil, err
				}
				return &Resolution{
					Method: MethodDirectSQL,
					DB:     db,
					Detail: "direct PostgreSQL connection",
				}, nil
			},
		})
	}

	if p.cfg.SupabaseURL != "" && p.cfg.SupabaseKey != "" {
		list = append(list, candidate{
			name: "rest",
			try: func(ctx context.Context) (*Resolution, error) {
				client := NewRestClient(p.cfg.SupabaseURL, p.cfg.SupabaseKey, p.cfg.RequestTimeout, p.logger)
				if err := client.CheckConnection(ctx); err != nil {
					return nil, err
				}
				return &Resolution{
					Method: MethodREST,
					Rest:   client,
					Detail: "PostgREST data API",
				}, nil
			},
		})
	} else {
		p.logger.Warn("rest fallback not configured, skipping",
			zap.Bool("url_set", p.cfg.SupabaseURL != ""),
			zap.Bool("key_set", p.cfg.SupabaseKey != ""))
	}

	return append(list, p.embeddedCandidate())
}

// embeddedCandidate never returns an error; it is the safety net every
// resolution terminates in.
func (p *Probe) embeddedCandidate() candidate {
	return candidate{
		name: "embedded",
		try: func(ctx context.Context) (*Resolution, error) {
			return &Resolution{
				Method: MethodEmbedded,
				DB:     openEmbedded(p.cfg.SQLitePath, p.logger),
				Detail: "embedded SQLite database",
			}, nil
		},
	}
}

// tryInOrder walks the candidates in listed order and returns the first
// success, logging each rejection along the way.
func tryInOrder(ctx context.Context, candidates []candidate, logger *zap.Logger) *Resolution {
	for _, c := range candidates {
		res, err := c.try(ctx)
		if err != nil {
			logger.Warn("storage candidate rejected",
				zap.String("candidate", c.name), zap.Error(err))
			continue
		}

		logger.Info("storage backend selected",
			zap.String("candidate", c.name),
			zap.Stringer("method", res.Method))
		return res
	}

	// Unreachable as long as the embedded candidate terminates the list.
	return nil
}
