package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"datawatch/internal/domain/check"
	"datawatch/internal/errs"
	"datawatch/internal/infrastructure/persistence/sqlite/model"
	"datawatch/internal/ports"
)

// ResultRepository implements ports.ResultRepository on gorm/sqlite.
type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *ResultRepository) GetResult(ctx context.Context, slug, identifier string) (ports.Result, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Result{}, err
	}

	var row model.Result
	if err := db.Where("slug = ? AND identifier = ?", slug, identifier).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Result{}, ports.ErrResultNotFound
		}
		return ports.Result{}, errs.Wrap(err, "query result")
	}

	result, err := mapResult(row)
	if err != nil {
		return ports.Result{}, err
	}

	if result.AssignedUsers, err = r.assignedUsers(db, row.ResultID); err != nil {
		return ports.Result{}, err
	}
	if result.AssignedGroups, err = r.assignedGroups(db, row.ResultID); err != nil {
		return ports.Result{}, err
	}
	return result, nil
}

func (r *ResultRepository) ListResults(ctx context.Context, filter ports.ResultFilter) ([]ports.Result, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Result{})
	if filter.Slug != "" {
		query = query.Where("slug = ?", filter.Slug)
	}
	if filter.Failed {
		query = query.Where("status IN ?", []int{int(check.StatusWarning), int(check.StatusCritical)})
	}
	if filter.OK {
		query = query.Where("status = ?", int(check.StatusOK))
	}
	if filter.Unacknowledged {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		query = query.Where("acknowledged_until IS NULL OR acknowledged_until < ?", now)
	}

	var rows []model.Result
	if err := query.Order("result_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query results")
	}

	results := make([]ports.Result, 0, len(rows))
	for _, row := range rows {
		result, err := mapResult(row)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *ResultRepository) ListIdentifiers(ctx context.Context, slug string) ([]string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var identifiers []string
	if err := db.Model(&model.Result{}).
		Where("slug = ?", slug).
		Order("identifier asc").
		Pluck("identifier", &identifiers).Error; err != nil {
		return nil, errs.Wrap(err, "query result identifiers")
	}
	return identifiers, nil
}

func (r *ResultRepository) SaveResult(ctx context.Context, input ports.ResultUpsert) (ports.Result, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Result{}, err
	}

	data, err := marshalJSONMap(input.Data)
	if err != nil {
		return ports.Result{}, errs.Wrap(err, "marshal result data")
	}

	row := model.Result{
		Slug:               input.Slug,
		Identifier:         input.Identifier,
		Status:             int(input.Status),
		Data:               data,
		Config:             "{}",
		PayloadDescription: input.PayloadDescription,
	}

	// The per-result config is operator-owned: inserted empty, never
	// overwritten by an execution upsert.
	updated := []string{"status", "data", "payload_description", "updated_at"}
	if input.Unacknowledge {
		updated = append(updated,
			"acknowledged_by", "acknowledged_at", "acknowledged_until", "acknowledged_reason")
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}, {Name: "identifier"}},
		DoUpdates: clause.AssignmentColumns(updated),
	}).Create(&row).Error; err != nil {
		return ports.Result{}, errs.Wrap(err, "upsert result")
	}

	var stored model.Result
	if err := db.Where("slug = ? AND identifier = ?", input.Slug, input.Identifier).First(&stored).Error; err != nil {
		return ports.Result{}, errs.Wrap(err, "reload upserted result")
	}
	return mapResult(stored)
}

func (r *ResultRepository) DeleteResult(ctx context.Context, slug, identifier string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var row model.Result
	if err := db.Where("slug = ? AND identifier = ?", slug, identifier).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return errs.Wrap(err, "query result for deletion")
	}

	if err := r.deleteResultRows(db, []uint64{row.ResultID}); err != nil {
		return err
	}
	return nil
}

func (r *ResultRepository) deleteResultRows(db *gorm.DB, resultIDs []uint64) error {
	if len(resultIDs) == 0 {
		return nil
	}

	if err := db.Where("result_id IN ?", resultIDs).Delete(&model.ResultStatusHistory{}).Error; err != nil {
		return errs.Wrap(err, "delete status history")
	}
	if err := db.Where("result_id IN ?", resultIDs).Delete(&model.ResultAssignedUser{}).Error; err != nil {
		return errs.Wrap(err, "delete assigned users")
	}
	if err := db.Where("result_id IN ?", resultIDs).Delete(&model.ResultAssignedGroup{}).Error; err != nil {
		return errs.Wrap(err, "delete assigned groups")
	}
	if err := db.Where("result_id IN ?", resultIDs).Delete(&model.ResultTag{}).Error; err != nil {
		return errs.Wrap(err, "delete result tags")
	}
	if err := db.Where("result_id IN ?", resultIDs).Delete(&model.Result{}).Error; err != nil {
		return errs.Wrap(err, "delete results")
	}
	return nil
}

func (r *ResultRepository) AppendStatusHistory(ctx context.Context, resultID uint64, from *check.Status, to check.Status) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var fromStatus *int
	if from != nil {
		value := int(*from)
		fromStatus = &value
	}

	if err := db.Create(&model.ResultStatusHistory{
		ResultID:   resultID,
		FromStatus: fromStatus,
		ToStatus:   int(to),
	}).Error; err != nil {
		return errs.Wrap(err, "append status history")
	}
	return nil
}

func (r *ResultRepository) ListStatusHistory(ctx context.Context, resultID uint64) ([]ports.StatusTransition, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ResultStatusHistory
	if err := db.Where("result_id = ?", resultID).Order("history_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query status history")
	}

	transitions := make([]ports.StatusTransition, 0, len(rows))
	for _, row := range rows {
		transition := ports.StatusTransition{
			ID:        row.HistoryID,
			ResultID:  row.ResultID,
			ToStatus:  check.Status(row.ToStatus),
			CreatedAt: row.CreatedAt,
		}
		if row.FromStatus != nil {
			from := check.Status(*row.FromStatus)
			transition.FromStatus = &from
		}
		transitions = append(transitions, transition)
	}
	return transitions, nil
}

func (r *ResultRepository) ReplaceAssignedUsers(ctx context.Context, resultID uint64, users []string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("result_id = ?", resultID).Delete(&model.ResultAssignedUser{}).Error; err != nil {
		return errs.Wrap(err, "clear assigned users")
	}
	for _, userID := range dedupe(users) {
		if err := db.Create(&model.ResultAssignedUser{ResultID: resultID, UserID: userID}).Error; err != nil {
			return errs.Wrap(err, "assign user")
		}
	}
	return nil
}

func (r *ResultRepository) ReplaceAssignedGroups(ctx context.Context, resultID uint64, groups []string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("result_id = ?", resultID).Delete(&model.ResultAssignedGroup{}).Error; err != nil {
		return errs.Wrap(err, "clear assigned groups")
	}
	for _, groupID := range dedupe(groups) {
		if err := db.Create(&model.ResultAssignedGroup{ResultID: resultID, GroupID: groupID}).Error; err != nil {
			return errs.Wrap(err, "assign group")
		}
	}
	return nil
}

func (r *ResultRepository) SetAcknowledgement(ctx context.Context, resultID uint64, ack ports.Acknowledgement) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	by := ack.By
	updates := map[string]any{
		"acknowledged_by":     &by,
		"acknowledged_at":     ack.At,
		"acknowledged_until":  ack.Until,
		"acknowledged_reason": ack.Reason,
	}
	if err := db.Model(&model.Result{}).Where("result_id = ?", resultID).Updates(updates).Error; err != nil {
		return errs.Wrap(err, "update acknowledgement")
	}
	return nil
}

func (r *ResultRepository) SetConfig(ctx context.Context, resultID uint64, config map[string]any) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	encoded, err := marshalJSONMap(config)
	if err != nil {
		return errs.Wrap(err, "marshal result config")
	}
	if err := db.Model(&model.Result{}).Where("result_id = ?", resultID).Update("config", encoded).Error; err != nil {
		return errs.Wrap(err, "update result config")
	}
	return nil
}

func (r *ResultRepository) StatusStats(ctx context.Context, slug string) ([]ports.StatusCount, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Result{}).
		Select("status, count(*) as amount").
		Group("status").
		Order("status asc")
	if slug != "" {
		query = query.Where("slug = ?", slug)
	}

	var rows []struct {
		Status int
		Amount int64
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query status stats")
	}

	stats := make([]ports.StatusCount, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, ports.StatusCount{Status: check.Status(row.Status), Amount: row.Amount})
	}
	return stats, nil
}

func (r *ResultRepository) RecordExecution(ctx context.Context, slug string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_run"}),
	}).Create(&model.CheckExecution{Slug: slug, LastRun: at}).Error; err != nil {
		return errs.Wrap(err, "record check execution")
	}
	return nil
}

func (r *ResultRepository) LastExecutions(ctx context.Context) (map[string]time.Time, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CheckExecution
	if err := db.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query check executions")
	}

	executions := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		executions[row.Slug] = row.LastRun
	}
	return executions, nil
}

func (r *ResultRepository) DeleteGhostResults(ctx context.Context, keep []string) ([]string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Result{})
	if len(keep) > 0 {
		query = query.Where("slug NOT IN ?", keep)
	}

	var rows []model.Result
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query ghost results")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(rows))
	slugs := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ResultID)
		if _, ok := seen[row.Slug]; !ok {
			seen[row.Slug] = struct{}{}
			slugs = append(slugs, row.Slug)
		}
	}

	if err := r.deleteResultRows(db, ids); err != nil {
		return nil, err
	}
	return slugs, nil
}

func (r *ResultRepository) DeleteGhostExecutions(ctx context.Context, keep []string) ([]string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CheckExecution{})
	if len(keep) > 0 {
		query = query.Where("slug NOT IN ?", keep)
	}

	var rows []model.CheckExecution
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query ghost executions")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	slugs := make([]string, 0, len(rows))
	for _, row := range rows {
		slugs = append(slugs, row.Slug)
	}

	deletion := db.Where("1 = 1")
	if len(keep) > 0 {
		deletion = db.Where("slug NOT IN ?", keep)
	}
	if err := deletion.Delete(&model.CheckExecution{}).Error; err != nil {
		return nil, errs.Wrap(err, "delete ghost executions")
	}
	return slugs, nil
}

func (r *ResultRepository) AddTag(ctx context.Context, input ports.TagCreate) (ports.Tag, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Tag{}, err
	}

	var existing model.ResultTag
	err = db.Where("result_id = ? AND text = ?", input.ResultID, input.Text).First(&existing).Error
	if err == nil {
		return ports.Tag{}, ports.ErrDuplicateTag
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.Tag{}, errs.Wrap(err, "query existing tag")
	}

	row := model.ResultTag{
		ResultID: input.ResultID,
		Text:     input.Text,
		Author:   input.Author,
		Category: int(input.Category),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Tag{}, errs.Wrap(err, "create result tag")
	}
	return mapTag(row), nil
}

func (r *ResultRepository) ListTags(ctx context.Context, resultID uint64) ([]ports.Tag, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ResultTag
	if err := db.Where("result_id = ?", resultID).Order("tag_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query result tags")
	}

	tags := make([]ports.Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, mapTag(row))
	}
	return tags, nil
}

func (r *ResultRepository) RemoveTag(ctx context.Context, resultID uint64, text string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	deletion := db.Where("result_id = ? AND text = ?", resultID, text).Delete(&model.ResultTag{})
	if deletion.Error != nil {
		return errs.Wrap(deletion.Error, "delete result tag")
	}
	if deletion.RowsAffected == 0 {
		return ports.ErrTagNotFound
	}
	return nil
}

func (r *ResultRepository) assignedUsers(db *gorm.DB, resultID uint64) ([]string, error) {
	var users []string
	if err := db.Model(&model.ResultAssignedUser{}).
		Where("result_id = ?", resultID).
		Order("user_id asc").
		Pluck("user_id", &users).Error; err != nil {
		return nil, errs.Wrap(err, "query assigned users")
	}
	return users, nil
}

func (r *ResultRepository) assignedGroups(db *gorm.DB, resultID uint64) ([]string, error) {
	var groups []string
	if err := db.Model(&model.ResultAssignedGroup{}).
		Where("result_id = ?", resultID).
		Order("group_id asc").
		Pluck("group_id", &groups).Error; err != nil {
		return nil, errs.Wrap(err, "query assigned groups")
	}
	return groups, nil
}

func mapResult(row model.Result) (ports.Result, error) {
	data, err := unmarshalJSONMap(row.Data)
	if err != nil {
		return ports.Result{}, errs.Wrapf(err, "decode data for result %d", row.ResultID)
	}
	config, err := unmarshalJSONMap(row.Config)
	if err != nil {
		return ports.Result{}, errs.Wrapf(err, "decode config for result %d", row.ResultID)
	}

	result := ports.Result{
		ID:                 row.ResultID,
		Slug:               row.Slug,
		Identifier:         row.Identifier,
		Status:             check.Status(row.Status),
		Data:               data,
		Config:             config,
		PayloadDescription: row.PayloadDescription,
		AcknowledgedAt:     row.AcknowledgedAt,
		AcknowledgedUntil:  row.AcknowledgedUntil,
		AcknowledgedReason: row.AcknowledgedReason,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
	if row.AcknowledgedBy != nil {
		result.AcknowledgedBy = *row.AcknowledgedBy
	}
	return result, nil
}

func mapTag(row model.ResultTag) ports.Tag {
	return ports.Tag{
		ID:        row.TagID,
		ResultID:  row.ResultID,
		Author:    row.Author,
		Text:      row.Text,
		Category:  ports.TagCategory(row.Category),
		CreatedAt: row.CreatedAt,
	}
}

func marshalJSONMap(values map[string]any) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func unmarshalJSONMap(encoded string) (map[string]any, error) {
	if encoded == "" {
		return map[string]any{}, nil
	}
	values := make(map[string]any)
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
