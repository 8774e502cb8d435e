package db

const (
	InsertTask = `
		INSERT INTO tasks (text, priority, metadata)
		VALUES (?, ?, ?)
	`

	GetTaskByID = `
		SELECT id, text, priority, status, attempts, last_error, metadata, created_at, printed_at
		FROM tasks WHERE id = ?
	`

	FetchRetryableTasks = `
		SELECT id, text, priority, status, attempts, last_error, metadata, created_at, printed_at
		FROM tasks
		WHERE status IN ('pending', 'failed') AND attempts < ?
		ORDER BY
			CASE WHEN status = 'failed' THEN 0 ELSE 1 END,
			priority DESC,
			created_at ASC,
			id ASC
		LIMIT ?
	`

	ListRecentTasks = `
		SELECT id, text, priority, status, attempts, last_error, metadata, created_at, printed_at
		FROM tasks ORDER BY created_at DESC, id DESC LIMIT ?
	`

	ListPendingTasks = `
		SELECT id, text, priority, status, attempts, last_error, metadata, created_at, printed_at
		FROM tasks WHERE status IN ('pending', 'failed')
		ORDER BY created_at DESC, id DESC LIMIT ?
	`

	MarkTaskPrinted = `
		UPDATE tasks
		SET status = 'printed', printed_at = CURRENT_TIMESTAMP, last_error = NULL
		WHERE id = ?
	`

	MarkTaskFailed = `
		UPDATE tasks
		SET status = 'failed', attempts = attempts + 1, last_error = ?
		WHERE id = ? AND status != 'printed'
	`

	CountTasksByStatus = `
		SELECT status, COUNT(*) FROM tasks GROUP BY status
	`

	CountTasksToday = `
		SELECT COUNT(*) FROM tasks WHERE DATE(created_at) = DATE('now', 'localtime')
	`

	ClearQueuedTasks = `
		DELETE FROM tasks
		WHERE status IN ('pending', 'failed')
	`

	ResetFailedTasks = `
		UPDATE tasks
		SET status = 'pending', attempts = 0, last_error = NULL
		WHERE status = 'failed'
	`

	PurgePrintedTasks = `
		DELETE FROM tasks
		WHERE status = 'printed' AND printed_at < datetime('now', ?)
	`
)
