package workshop

import (
	"context"

	"go.uber.org/zap"
)

// ListJobs lists repair jobs newest first, optionally filtered by status
// 修理ジョブを新しい順に取得（ステータスで絞り込み可）
func (m *Manager) ListJobs(ctx context.Context, status JobStatus) ([]RepairJob, error) {
	if status != "" && !status.Valid() {
		return nil, NewValidationError("status", "無効なステータスです", string(status))
	}
	jobs, err := m.storage.ListJobs(ctx, status)
	if err != nil {
		return nil, asDomainError("list_jobs", "修理ジョブ一覧取得に失敗しました", err)
	}
	if jobs == nil {
		jobs = []RepairJob{}
	}
	return jobs, nil
}

// GetJob gets a repair job
// 修理ジョブを取得
func (m *Manager) GetJob(ctx context.Context, jobID string) (*RepairJob, error) {
	if err := ValidateID("job_id", jobID); err != nil {
		return nil, err
	}
	job, err := m.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, asDomainError("get_job", "修理ジョブ取得に失敗しました", err)
	}
	return job, nil
}

// CreateJob opens a repair job with the next job number
// 次のジョブ番号で修理ジョブを作成
func (m *Manager) CreateJob(ctx context.Context, input *JobInput) (*RepairJob, error) {
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	input.normalize()
	if err := m.validateJobInput(input); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = JobStatusPending
	}

	now := m.now()
	job := &RepairJob{
		ID:        NewID(),
		CreatedAt: now,
	}
	applyJobInput(job, input)
	job.Status = status
	job.UpdatedAt = now
	if status == JobStatusCompleted {
		job.CompletedAt = &now
	}

	err := m.runInTx(ctx, "create_job", func(q Queries) error {
		if err := q.LockJobNumbering(ctx); err != nil {
			return err
		}
		number, err := q.NextJobNumber(ctx)
		if err != nil {
			return err
		}
		job.JobNumber = number
		return q.CreateJob(ctx, job)
	})
	if err != nil {
		m.logger.Error("修理ジョブ作成に失敗しました", zap.String("customer", input.CustomerName), zap.Error(err))
		return nil, asDomainError("create_job", "修理ジョブ作成に失敗しました", err)
	}

	m.logger.Info("修理ジョブ作成完了",
		zap.String("job_id", job.ID),
		zap.Int64("job_number", job.JobNumber),
		zap.String("status", string(job.Status)),
	)
	return job, nil
}

// UpdateJob replaces a job's fields. completed_at is set when the job enters
// COMPLETED and cleared when it leaves it.
// 修理ジョブを更新（COMPLETEDへの遷移で完了日時を設定、離脱でクリア）
func (m *Manager) UpdateJob(ctx context.Context, jobID string, input *JobInput) (*RepairJob, error) {
	if err := ValidateID("job_id", jobID); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	input.normalize()
	if err := m.validateJobInput(input); err != nil {
		return nil, err
	}

	var job *RepairJob
	err := m.runInTx(ctx, "update_job", func(q Queries) error {
		current, err := q.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		job = current

		previous := job.Status
		applyJobInput(job, input)
		if input.Status != "" {
			job.Status = input.Status
		}

		now := m.now()
		switch {
		case job.Status == JobStatusCompleted && previous != JobStatusCompleted:
			job.CompletedAt = &now
		case job.Status != JobStatusCompleted:
			job.CompletedAt = nil
		}
		job.UpdatedAt = now

		return q.UpdateJob(ctx, job)
	})
	if err != nil {
		return nil, asDomainError("update_job", "修理ジョブ更新に失敗しました", err)
	}

	m.logger.Info("修理ジョブ更新完了",
		zap.String("job_id", jobID),
		zap.String("status", string(job.Status)),
	)
	return job, nil
}

// DeleteJob deletes a job and its usage rows. Consumed stock is not restored.
// 修理ジョブと使用記録を削除（消費した在庫は戻さない）
func (m *Manager) DeleteJob(ctx context.Context, jobID string) error {
	if err := ValidateID("job_id", jobID); err != nil {
		return err
	}
	if err := m.storage.DeleteJob(ctx, jobID); err != nil {
		return asDomainError("delete_job", "修理ジョブ削除に失敗しました", err)
	}
	m.logger.Info("修理ジョブ削除完了", zap.String("job_id", jobID))
	return nil
}

// CreateJobItem records parts consumed by a job. The usage row, the stock
// decrement and the OUT movement commit together or not at all.
// ジョブの部品使用を記録（使用記録・在庫減算・OUT移動は同時にコミット）
func (m *Manager) CreateJobItem(ctx context.Context, input *JobItemInput) (*JobItemResult, error) {
	if input == nil {
		return nil, NewValidationError("input", "入力が指定されていません", "")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var (
		item   *Item
		result *JobItemResult
	)
	err := m.runInTx(ctx, "create_job_item", func(q Queries) error {
		if _, err := q.GetJob(ctx, input.JobID); err != nil {
			return err
		}
		found, err := q.GetItem(ctx, input.ItemID)
		if err != nil {
			return err
		}
		item = found

		jobItem := &JobItem{
			ID:           NewID(),
			JobID:        input.JobID,
			ItemID:       input.ItemID,
			QuantityUsed: input.QuantityUsed,
			CreatedAt:    m.now(),
		}
		if err := q.CreateJobItem(ctx, jobItem); err != nil {
			return err
		}

		movement, stock, err := m.ledger.RecordUsage(ctx, q, input.ItemID, input.QuantityUsed, input.JobID)
		if err != nil {
			return err
		}

		result = &JobItemResult{JobItem: jobItem, Movement: movement, CurrentStock: stock}
		return nil
	})
	if err != nil {
		m.logger.Error("部品使用記録に失敗しました",
			zap.String("job_id", input.JobID),
			zap.String("item_id", input.ItemID),
			zap.Error(err),
		)
		return nil, asDomainError("create_job_item", "部品使用記録に失敗しました", err)
	}

	m.publishStockMoved(ctx, result.Movement, result.CurrentStock)
	if result.CurrentStock <= item.MinStockLevel {
		m.triggerLowStockAlert(ctx, item, result.CurrentStock)
	}

	m.logger.Info("部品使用記録完了",
		zap.String("job_id", input.JobID),
		zap.String("item_id", input.ItemID),
		zap.Int64("quantity_used", input.QuantityUsed),
		zap.Int64("current_stock", result.CurrentStock),
	)
	return result, nil
}

// ListJobItems lists parts used by a job
// ジョブで使用した部品を取得
func (m *Manager) ListJobItems(ctx context.Context, jobID string) ([]JobItemView, error) {
	if err := ValidateID("job_id", jobID); err != nil {
		return nil, err
	}
	if _, err := m.storage.GetJob(ctx, jobID); err != nil {
		return nil, asDomainError("get_job", "修理ジョブ取得に失敗しました", err)
	}
	items, err := m.storage.ListJobItems(ctx, jobID)
	if err != nil {
		return nil, asDomainError("list_job_items", "使用部品一覧取得に失敗しました", err)
	}
	if items == nil {
		items = []JobItemView{}
	}
	return items, nil
}

func (m *Manager) validateJobInput(input *JobInput) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if err := ValidateMoney("estimated_cost", input.EstimatedCost); err != nil {
		return err
	}
	return ValidateMoney("final_cost", input.FinalCost)
}

func applyJobInput(job *RepairJob, input *JobInput) {
	job.CustomerName = input.CustomerName
	job.CustomerPhone = input.CustomerPhone
	job.CustomerEmail = input.CustomerEmail
	job.DeviceType = input.DeviceType
	job.DeviceModel = input.DeviceModel
	job.DeviceSerial = input.DeviceSerial
	job.IssueDescription = input.IssueDescription
	job.EstimatedCost = nullDecimal(input.EstimatedCost)
	job.FinalCost = nullDecimal(input.FinalCost)
	job.Notes = input.Notes
}
