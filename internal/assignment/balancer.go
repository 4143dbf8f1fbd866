// Package assignment picks a technician for a ticket from a support group
// roster and applies backup-technician redirects.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

var (
	// ErrNoAvailableTechnicians is returned when no group yields a technician.
	ErrNoAvailableTechnicians = errors.New("no available technicians")
	// ErrNoSupportGroups is returned when neither the template nor the global config lists a group.
	ErrNoSupportGroups = errors.New("no active support groups configured for load balancing")
)

// Directory exposes technician rosters and live workload.
type Directory interface {
	ActiveTechnicians(ctx context.Context, supportGroupID string) ([]domain.Technician, error)
	Workload(ctx context.Context, technicianID string) (domain.TechnicianWorkload, error)
	GetTechnician(ctx context.Context, id string) (*domain.Technician, error)
}

// RouteSource lists which support groups a template routes to.
type RouteSource interface {
	TemplateRoutes(ctx context.Context, templateID string) ([]domain.GroupRoute, error)
	ActiveSupportGroups(ctx context.Context) ([]domain.SupportGroup, error)
}

// BackupDirectory resolves active backup redirects.
type BackupDirectory interface {
	ActiveBackupFor(ctx context.Context, technicianID string, at time.Time) (*domain.BackupAssignment, error)
}

// Picker returns an index in [0, n).
type Picker func(n int) int

// Candidate is a technician together with the workload used to rank it.
type Candidate struct {
	Technician domain.Technician
	Workload   domain.TechnicianWorkload
}

// Assignment is the selected technician. RedirectedFrom is set when a backup
// redirect replaced the technician the strategy picked.
type Assignment struct {
	Technician     domain.Technician
	RedirectedFrom *domain.Technician
	Backup         *domain.BackupAssignment
	SupportGroupID string
	Strategy       Strategy
}

// Options tunes a Balancer.
type Options struct {
	GlobalStrategy Strategy
	Picker         Picker
	Now            func() time.Time
	Logger         *zap.Logger
}

// Balancer implements the assignment strategies.
type Balancer struct {
	directory Directory
	routes    RouteSource
	backups   BackupDirectory
	global    Strategy
	pick      Picker
	now       func() time.Time
	logger    *zap.Logger
}

// NewBalancer creates a Balancer. Zero options fall back to least_load,
// math/rand/v2 tie breaking and time.Now.
func NewBalancer(directory Directory, routes RouteSource, backups BackupDirectory, opts Options) *Balancer {
	if opts.GlobalStrategy == "" {
		opts.GlobalStrategy = LeastLoad
	}
	if opts.Picker == nil {
		opts.Picker = rand.IntN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Balancer{
		directory: directory,
		routes:    routes,
		backups:   backups,
		global:    opts.GlobalStrategy,
		pick:      opts.Picker,
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

// Assign selects a technician from one support group.
func (b *Balancer) Assign(ctx context.Context, supportGroupID string, strategy Strategy) (*Assignment, error) {
	technicians, err := b.directory.ActiveTechnicians(ctx, supportGroupID)
	if err != nil {
		return nil, fmt.Errorf("list technicians for group %s: %w", supportGroupID, err)
	}
	if len(technicians) == 0 {
		return nil, ErrNoAvailableTechnicians
	}

	candidates := make([]Candidate, 0, len(technicians))
	for _, tech := range technicians {
		workload, err := b.directory.Workload(ctx, tech.ID)
		if err != nil {
			return nil, fmt.Errorf("workload for technician %s: %w", tech.ID, err)
		}
		candidates = append(candidates, Candidate{Technician: tech, Workload: workload})
	}

	chosen, ok := Select(candidates, strategy, b.pick)
	if !ok {
		return nil, ErrNoAvailableTechnicians
	}

	result := &Assignment{
		Technician:     chosen.Technician,
		SupportGroupID: supportGroupID,
		Strategy:       strategy,
	}
	b.applyBackup(ctx, result)
	return result, nil
}

// AutoAssign walks the template's support groups in priority order, or every
// active group with the global strategy when the template has none.
func (b *Balancer) AutoAssign(ctx context.Context, templateID string) (*Assignment, error) {
	var routes []domain.GroupRoute
	if templateID != "" {
		templateRoutes, err := b.routes.TemplateRoutes(ctx, templateID)
		if err != nil {
			b.logger.Warn("template support groups unavailable", zap.String("template_id", templateID), zap.Error(err))
		}
		routes = templateRoutes
	}

	useGlobal := len(routes) == 0
	if useGlobal {
		groups, err := b.routes.ActiveSupportGroups(ctx)
		if err != nil {
			return nil, fmt.Errorf("list support groups: %w", err)
		}
		for i, g := range groups {
			routes = append(routes, domain.GroupRoute{SupportGroupID: g.ID, Strategy: string(b.global), Priority: i + 1})
		}
	}
	if len(routes) == 0 {
		return nil, ErrNoSupportGroups
	}

	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Priority < routes[j].Priority })

	for _, route := range routes {
		strategy := b.global
		if !useGlobal {
			parsed, err := ParseStrategy(route.Strategy)
			if err != nil {
				b.logger.Warn("skipping support group", zap.String("support_group_id", route.SupportGroupID), zap.Error(err))
				continue
			}
			strategy = parsed
		}

		result, err := b.Assign(ctx, route.SupportGroupID, strategy)
		if errors.Is(err, ErrNoAvailableTechnicians) {
			continue
		}
		if err != nil {
			b.logger.Warn("support group assignment failed", zap.String("support_group_id", route.SupportGroupID), zap.Error(err))
			continue
		}
		return result, nil
	}
	return nil, ErrNoAvailableTechnicians
}

func (b *Balancer) applyBackup(ctx context.Context, result *Assignment) {
	if b.backups == nil {
		return
	}
	now := b.now()
	original := result.Technician
	backup, err := b.backups.ActiveBackupFor(ctx, original.ID, now)
	if err != nil {
		b.logger.Warn("backup lookup failed; keeping original technician", zap.String("technician_id", original.ID), zap.Error(err))
		return
	}
	if backup == nil || !backup.Covers(now) || backup.BackupTechnicianID == original.ID {
		return
	}
	replacement, err := b.directory.GetTechnician(ctx, backup.BackupTechnicianID)
	if err != nil || replacement == nil || !replacement.Active {
		b.logger.Warn("backup technician unavailable; keeping original technician",
			zap.String("technician_id", original.ID),
			zap.String("backup_technician_id", backup.BackupTechnicianID),
			zap.Error(err))
		return
	}
	result.Technician = *replacement
	result.RedirectedFrom = &original
	result.Backup = backup
}

// Select applies strategy to candidates. Ties are broken with pick over the
// tied subset, in input order.
func Select(candidates []Candidate, strategy Strategy, pick Picker) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	if strategy == Random {
		return candidates[pick(len(candidates))], true
	}

	tied := candidates
	if strategy != RoundRobin {
		tied = minBy(tied, func(c Candidate) int64 { return int64(c.Workload.ActiveTickets) })
	}
	tied = minBy(tied, func(c Candidate) int64 { return lastAssigned(c).UnixNano() })
	return tied[pick(len(tied))], true
}

func minBy(candidates []Candidate, key func(Candidate) int64) []Candidate {
	best := key(candidates[0])
	for _, c := range candidates[1:] {
		if k := key(c); k < best {
			best = k
		}
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if key(c) == best {
			out = append(out, c)
		}
	}
	return out
}

func lastAssigned(c Candidate) time.Time {
	if c.Workload.LastAssignedAt == nil {
		return time.Unix(0, 0)
	}
	return *c.Workload.LastAssignedAt
}
