package db

import (
	"context"
	"time"

	"leanpulse/internal/types"
)

// MetricsRepository reads per-project aggregates for the report compiler.
// It is read-only.
type MetricsRepository struct {
	db DBTX
}

// NewMetricsRepository creates a MetricsRepository.
func NewMetricsRepository(db DBTX) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// GetProjectMetrics aggregates incidents, cost impact, health and
// recommendations per project over [start, end). A nil projectID covers all
// projects. health_score is NULL for projects with no metric samples in the
// window.
func (r *MetricsRepository) GetProjectMetrics(ctx context.Context, projectID *string, start, end time.Time) ([]types.ProjectMetrics, error) {
	var w whereBuilder
	startArg := w.bind(start)
	endArg := w.bind(end)
	if projectID != nil {
		w.add("p.id = ?", *projectID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.name, p.status, p.is_active,
		        (SELECT AVG(m.health_score) FROM project_metrics m
		          WHERE m.project_id = p.id
		            AND m.recorded_at >= `+startArg+` AND m.recorded_at < `+endArg+`),
		        (SELECT COUNT(*) FROM waste_incidents i
		          WHERE i.project_id = p.id
		            AND i.created_at >= `+startArg+` AND i.created_at < `+endArg+`),
		        (SELECT COALESCE(SUM(i.cost_impact), 0) FROM waste_incidents i
		          WHERE i.project_id = p.id
		            AND i.created_at >= `+startArg+` AND i.created_at < `+endArg+`),
		        (SELECT COUNT(*) FROM recommendations rc
		          WHERE rc.project_id = p.id
		            AND rc.created_at >= `+startArg+` AND rc.created_at < `+endArg+`),
		        (SELECT COALESCE(SUM(rc.potential_savings), 0) FROM recommendations rc
		          WHERE rc.project_id = p.id
		            AND rc.created_at >= `+startArg+` AND rc.created_at < `+endArg+`)
		 FROM projects p`+w.clause()+`
		 ORDER BY p.id`,
		w.args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query project metrics", err)
	}
	defer rows.Close()

	var out []types.ProjectMetrics
	for rows.Next() {
		var m types.ProjectMetrics
		if err := rows.Scan(
			&m.ProjectID,
			&m.Name,
			&m.Status,
			&m.IsActive,
			&m.HealthScore,
			&m.IncidentCount,
			&m.CostImpact,
			&m.RecommendationCount,
			&m.PotentialSavings,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan project metrics", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating project metrics", err)
	}
	return out, nil
}
