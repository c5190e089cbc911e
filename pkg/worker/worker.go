package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stream-snapshot/pkg/jobs"
	"stream-snapshot/pkg/models"
	"stream-snapshot/pkg/services/retention"
)

// PollInterval is how long the worker sleeps when the queue is empty.
var PollInterval = 10 * time.Second

// applyRetention is swapped out in tests.
var applyRetention = retention.Apply

// Start processes queued jobs one at a time until ctx is cancelled.
func Start(ctx context.Context) {
	log.Println("Starting job worker...")

	for {
		job, err := jobs.GetPendingJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("Error getting pending job: %v", err)
		}

		if job == nil {
			select {
			case <-ctx.Done():
				log.Println("Job worker stopped.")
				return
			case <-time.After(PollInterval):
			}
			continue
		}

		processJob(ctx, job)
	}
	log.Println("Job worker stopped.")
}

func processJob(ctx context.Context, job *models.Job) {
	log.Printf("Processing job %d: %s", job.ID, job.JobType)
	if err := jobs.UpdateJobStatus(ctx, job.ID, "running", nil); err != nil {
		log.Printf("Error updating job status to running: %v", err)
		return
	}

	var jobErr error
	switch job.JobType {
	case retention.JobType:
		var target retention.Target
		if err := json.Unmarshal([]byte(job.Payload), &target); err != nil {
			jobErr = fmt.Errorf("invalid %s payload: %w", job.JobType, err)
		} else if target.Dir == "" || target.Prefix == "" {
			jobErr = fmt.Errorf("%s payload needs dir and prefix", job.JobType)
		} else {
			applyRetention(target)
		}
	default:
		jobErr = fmt.Errorf("unknown job type: %s", job.JobType)
	}

	status := "completed"
	if jobErr != nil {
		log.Printf("Error processing job %d: %v", job.ID, jobErr)
		status = "failed"
	} else {
		log.Printf("Job %d completed successfully", job.ID)
	}
	if err := jobs.UpdateJobStatus(ctx, job.ID, status, jobErr); err != nil {
		log.Printf("Error updating job status after completion/failure: %v", err)
	}

	// Finished jobs are not kept; failures are in the log.
	if err := jobs.DeleteJob(ctx, job.ID); err != nil {
		log.Printf("Error deleting job %d: %v", job.ID, err)
	}
}
