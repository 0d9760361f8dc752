// Package pipeline drives one full run: resolve the target, collect signals,
// rank partners, fetch their top posts, analyze, and assemble the report.
// Failures below the run level stay inside their source or partner boundary;
// only credential problems, an unresolvable target, cancellation, and an
// empty interaction graph abort a run.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/engagelens/internal/batch"
	"github.com/engagelens/internal/cache"
	"github.com/engagelens/internal/graph"
	"github.com/engagelens/internal/report"
	"github.com/engagelens/internal/retry"
	"github.com/engagelens/internal/scoring"
	"github.com/engagelens/internal/social"
	"github.com/engagelens/pkg/models"
)

// State names one phase of a run. Transitions are strictly forward except
// the jump to StateFailed, which is terminal and reachable from anywhere.
type State string

const (
	StateInit          State = "init"
	StateCollecting    State = "collecting_signals"
	StateRanking       State = "ranking_partners"
	StateFetchingPosts State = "fetching_partner_posts"
	StateAnalyzing     State = "awaiting_analysis"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Partner posts are selected from up to this many recent posts, reposts
// excluded.
const recentPostsLimit = 100

// SocialAPI is the slice of the social client a run drives. *social.Client
// satisfies it.
type SocialAPI interface {
	AccountByHandle(ctx context.Context, handle string) (models.Account, error)
	AccountsByIDs(ctx context.Context, ids []string) (map[string]models.Account, error)
	RecentPosts(ctx context.Context, accountID string, limit int) ([]models.PartnerPost, error)
	SignalSources(targetID string) []social.SignalSource
	FollowingIDs(ctx context.Context, targetID string) (map[string]bool, error)
}

// Analyzer produces per-partner insights and the global synthesis.
// *analysis.Analyzer satisfies it; a nil Analyzer disables the stage.
type Analyzer interface {
	AnalyzePartner(ctx context.Context, partner models.RankedPartner, posts []models.PartnerPost) models.PartnerAnalysis
	Synthesize(ctx context.Context, target string, analyses []models.PartnerAnalysis) models.GlobalSummary
}

// Options carries the per-run knobs.
type Options struct {
	Target   string // handle, with or without the leading @
	Partners int    // ranked partners to keep
	Posts    int    // top posts per partner
	Workers  int    // worker pool size for per-partner stages
	Refresh  bool   // bypass cache reads; writes still happen
	Boost    graph.BoostConfig
}

func (o *Options) normalize() {
	o.Target = strings.TrimPrefix(strings.TrimSpace(o.Target), "@")
	if o.Partners <= 0 {
		o.Partners = 20
	}
	if o.Posts <= 0 {
		o.Posts = 3
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
}

// Pipeline owns the state of one run. Not safe for concurrent Run calls;
// build one per run.
type Pipeline struct {
	social   SocialAPI
	store    cache.Store
	analyzer Analyzer
	ttls     cache.TTLs
	retryCfg retry.Config
	log      zerolog.Logger
	state    State
}

// New wires a pipeline. analyzer may be nil, which skips the analysis stage
// and leaves the report without analyses.
func New(socialAPI SocialAPI, store cache.Store, analyzer Analyzer, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		social:   socialAPI,
		store:    store,
		analyzer: analyzer,
		ttls:     cache.DefaultTTLs(),
		retryCfg: retry.DefaultConfig(),
		log:      log,
		state:    StateInit,
	}
}

// State returns the current run state.
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) transition(next State) {
	p.log.Info().Str("from", string(p.state)).Str("to", string(next)).Msg("state change")
	p.state = next
}

func (p *Pipeline) fail(err error) (*report.Report, error) {
	p.transition(StateFailed)
	return nil, err
}

// Run executes the full pipeline and returns the assembled report. The
// caller renders it to disk.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*report.Report, error) {
	opts.normalize()
	if opts.Target == "" {
		return p.fail(&social.FatalConfigError{Reason: "no target account configured"})
	}

	target, err := p.resolveTarget(ctx, opts)
	if err != nil {
		return p.fail(err)
	}
	p.log.Info().Str("target", target.Handle).Str("id", target.ID).Msg("target resolved")

	p.transition(StateCollecting)
	scores, err := p.collectScores(ctx, opts, target.ID)
	if err != nil {
		return p.fail(err)
	}
	if len(scores) == 0 {
		return p.fail(&social.EmptyResultError{Target: opts.Target})
	}

	p.transition(StateRanking)
	ranked := graph.Rank(scores, opts.Partners)
	if len(ranked) < opts.Partners {
		p.log.Warn().Int("requested", opts.Partners).Int("found", len(ranked)).
			Msg("fewer partners than requested")
	}
	p.fillProfiles(ctx, ranked)

	p.transition(StateFetchingPosts)
	posts := p.fetchPartnerPosts(ctx, opts, ranked)

	p.transition(StateAnalyzing)
	var analyses map[string]models.PartnerAnalysis
	var summary *models.GlobalSummary
	if p.analyzer != nil {
		analyses, summary = p.analyze(ctx, opts, target, ranked, posts)
	} else {
		p.log.Info().Msg("analysis disabled, report will carry none")
	}

	result := buildReport(target, ranked, scores, posts, analyses, summary)
	p.transition(StateDone)
	return result, nil
}

// resolveTarget turns the configured handle into a full account profile.
// This is the first network call of a run, so it doubles as credential
// validation.
func (p *Pipeline) resolveTarget(ctx context.Context, opts Options) (models.Account, error) {
	var account models.Account
	if !opts.Refresh {
		hit, err := cache.GetJSON(ctx, p.store, cache.NamespaceAccountID, opts.Target, &account)
		if err != nil {
			p.log.Warn().Err(err).Msg("cache read failed, resolving fresh")
		}
		if hit {
			p.log.Debug().Str("target", opts.Target).Msg("target served from cache")
			return account, nil
		}
	}

	account, err := p.social.AccountByHandle(ctx, opts.Target)
	if err != nil {
		return models.Account{}, err
	}

	if err := cache.PutJSON(ctx, p.store, cache.NamespaceAccountID, opts.Target, account, p.ttls.AccountID); err != nil {
		p.log.Warn().Err(err).Msg("caching target account failed")
	}
	return account, nil
}

// collectScores returns the finalized per-counterpart score map, from cache
// when fresh. On a miss all sources are drained concurrently, but records
// are assembled in canonical source order (timeline, mentions, likes) so
// discovery order is identical for every interleave.
func (p *Pipeline) collectScores(ctx context.Context, opts Options, targetID string) (map[string]*models.InteractionScore, error) {
	if !opts.Refresh {
		var cached map[string]*models.InteractionScore
		hit, err := cache.GetJSON(ctx, p.store, cache.NamespaceInteractionScores, targetID, &cached)
		if err != nil {
			p.log.Warn().Err(err).Msg("cache read failed, collecting fresh")
		}
		if hit {
			p.log.Info().Int("counterparts", len(cached)).Msg("interaction scores served from cache")
			return cached, nil
		}
	}

	sources := p.social.SignalSources(targetID)
	drained := make([][]models.InteractionRecord, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		g.Go(func() error {
			records, err := social.Drain(gctx, source, p.retryCfg, p.log)
			if err != nil {
				return err
			}
			drained[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []models.InteractionRecord
	for _, sourceRecords := range drained {
		records = append(records, sourceRecords...)
	}
	p.log.Info().Int("records", len(records)).Msg("signal collection complete")

	var following map[string]bool
	if opts.Boost.Enabled {
		var err error
		following, err = p.social.FollowingIDs(ctx, targetID)
		if err != nil {
			return nil, err
		}
	}

	scores := graph.Build(records, following, targetID, opts.Boost)

	// An empty map is a fatal outcome for this run but must not poison the
	// next one, so only real results are cached.
	if len(scores) > 0 {
		if err := cache.PutJSON(ctx, p.store, cache.NamespaceInteractionScores, targetID, scores, p.ttls.InteractionScores); err != nil {
			p.log.Warn().Err(err).Msg("caching interaction scores failed")
		}
	}
	return scores, nil
}

// fillProfiles resolves partner profiles in batches. Resolution failures
// degrade to bare counterpart ids in the report.
func (p *Pipeline) fillProfiles(ctx context.Context, ranked []models.RankedPartner) {
	if len(ranked) == 0 {
		return
	}

	ids := make([]string, 0, len(ranked))
	for _, partner := range ranked {
		ids = append(ids, partner.CounterpartID)
	}

	profiles, err := p.social.AccountsByIDs(ctx, ids)
	if err != nil {
		p.log.Warn().Err(err).Msg("partner profile resolution failed, report will carry bare ids")
		return
	}

	for i := range ranked {
		if account, ok := profiles[ranked[i].CounterpartID]; ok {
			ranked[i].Handle = account.Handle
			ranked[i].DisplayName = account.DisplayName
			ranked[i].Bio = account.Bio
			ranked[i].Followers = account.Followers
		}
	}
}

// fetchPartnerPosts selects each partner's top posts on the worker pool. A
// partner whose posts cannot be fetched keeps an empty list; the run never
// aborts for one partner.
func (p *Pipeline) fetchPartnerPosts(ctx context.Context, opts Options, ranked []models.RankedPartner) map[string][]models.PartnerPost {
	queue := batch.NewQueue[[]models.PartnerPost](opts.Workers, p.log)
	for _, partner := range ranked {
		queue.Add(batch.FuncTask[[]models.PartnerPost]{
			TaskID: partner.CounterpartID,
			Fn: func(ctx context.Context) ([]models.PartnerPost, error) {
				return p.partnerTopPosts(ctx, opts, partner)
			},
		})
	}

	results := queue.ProcessAll(ctx)

	posts := make(map[string][]models.PartnerPost, len(ranked))
	for _, partner := range ranked {
		result := results[partner.CounterpartID]
		if result.Err != nil {
			p.log.Warn().Err(result.Err).Str("partner", partner.CounterpartID).
				Msg("partner posts unavailable, keeping empty list")
			posts[partner.CounterpartID] = nil
			continue
		}
		posts[partner.CounterpartID] = result.Value
	}
	return posts
}

func (p *Pipeline) partnerTopPosts(ctx context.Context, opts Options, partner models.RankedPartner) ([]models.PartnerPost, error) {
	if !opts.Refresh {
		var cached []models.PartnerPost
		hit, err := cache.GetJSON(ctx, p.store, cache.NamespacePartnerTopPosts, partner.CounterpartID, &cached)
		if err != nil {
			p.log.Warn().Err(err).Msg("cache read failed, fetching fresh")
		}
		if hit {
			return cached, nil
		}
	}

	recent, err := p.social.RecentPosts(ctx, partner.CounterpartID, recentPostsLimit)
	if err != nil {
		return nil, err
	}

	top := scoring.SelectTop(recent, opts.Posts, partner.Followers)

	if err := cache.PutJSON(ctx, p.store, cache.NamespacePartnerTopPosts, partner.CounterpartID, top, p.ttls.PartnerTopPosts); err != nil {
		p.log.Warn().Err(err).Msg("caching partner posts failed")
	}
	return top, nil
}

// analyze runs per-partner analyses on the worker pool, then one global
// synthesis. Partners without posts are skipped. Failures ride along inside
// the results.
func (p *Pipeline) analyze(ctx context.Context, opts Options, target models.Account, ranked []models.RankedPartner, posts map[string][]models.PartnerPost) (map[string]models.PartnerAnalysis, *models.GlobalSummary) {
	queue := batch.NewQueue[models.PartnerAnalysis](opts.Workers, p.log)
	for _, partner := range ranked {
		partnerPosts := posts[partner.CounterpartID]
		if len(partnerPosts) == 0 {
			p.log.Debug().Str("partner", partner.CounterpartID).Msg("no posts, skipping analysis")
			continue
		}
		queue.Add(batch.FuncTask[models.PartnerAnalysis]{
			TaskID: partner.CounterpartID,
			Fn: func(ctx context.Context) (models.PartnerAnalysis, error) {
				return p.partnerAnalysis(ctx, opts, partner, partnerPosts), nil
			},
		})
	}

	results := queue.ProcessAll(ctx)

	analyses := make(map[string]models.PartnerAnalysis, len(results))
	ordered := make([]models.PartnerAnalysis, 0, len(results))
	for _, partner := range ranked {
		result, ok := results[partner.CounterpartID]
		if !ok {
			continue
		}
		analyses[partner.CounterpartID] = result.Value
		ordered = append(ordered, result.Value)
	}

	summary := p.globalSummary(ctx, opts, target, ordered)
	return analyses, summary
}

func (p *Pipeline) partnerAnalysis(ctx context.Context, opts Options, partner models.RankedPartner, posts []models.PartnerPost) models.PartnerAnalysis {
	if !opts.Refresh {
		var cached models.PartnerAnalysis
		hit, err := cache.GetJSON(ctx, p.store, cache.NamespacePartnerAnalysis, partner.CounterpartID, &cached)
		if err != nil {
			p.log.Warn().Err(err).Msg("cache read failed, analyzing fresh")
		}
		if hit {
			return cached
		}
	}

	result := p.analyzer.AnalyzePartner(ctx, partner, posts)

	// Outright failures are not cached so the next run retries them.
	if result.Error == "" {
		if err := cache.PutJSON(ctx, p.store, cache.NamespacePartnerAnalysis, partner.CounterpartID, result, p.ttls.PartnerAnalysis); err != nil {
			p.log.Warn().Err(err).Msg("caching partner analysis failed")
		}
	}
	return result
}

func (p *Pipeline) globalSummary(ctx context.Context, opts Options, target models.Account, analyses []models.PartnerAnalysis) *models.GlobalSummary {
	key := target.ID + "_global"

	if !opts.Refresh {
		var cached models.GlobalSummary
		hit, err := cache.GetJSON(ctx, p.store, cache.NamespaceGlobalSummary, key, &cached)
		if err != nil {
			p.log.Warn().Err(err).Msg("cache read failed, synthesizing fresh")
		}
		if hit {
			return &cached
		}
	}

	summary := p.analyzer.Synthesize(ctx, target.Handle, analyses)
	if summary.Error == "" {
		if err := cache.PutJSON(ctx, p.store, cache.NamespaceGlobalSummary, key, summary, p.ttls.GlobalSummary); err != nil {
			p.log.Warn().Err(err).Msg("caching global summary failed")
		}
	}
	return &summary
}

func buildReport(target models.Account, ranked []models.RankedPartner, scores map[string]*models.InteractionScore, posts map[string][]models.PartnerPost, analyses map[string]models.PartnerAnalysis, summary *models.GlobalSummary) *report.Report {
	sections := make([]report.PartnerSection, 0, len(ranked))
	for _, partner := range ranked {
		section := report.PartnerSection{
			Partner: partner,
			Posts:   posts[partner.CounterpartID],
		}
		if score, ok := scores[partner.CounterpartID]; ok {
			section.Score = *score
		}
		if analysis, ok := analyses[partner.CounterpartID]; ok {
			section.Analysis = &analysis
		}
		sections = append(sections, section)
	}

	return &report.Report{
		GeneratedAt: time.Now().UTC(),
		Target:      target,
		Partners:    sections,
		Summary:     summary,
	}
}
