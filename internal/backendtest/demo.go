package backendtest

import (
	"time"

	"github.com/sumire/jobconsole/internal/domain"
)

// SeedDemo fills the fake with a small, varied set of jobs for demo mode.
func SeedDemo(s *Server) {
	now := s.now().UTC()
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}
	monday := 1

	s.AddJob(domain.Job{
		JobID:           "train-resnet",
		JobName:         "ResNet fine-tune",
		JobType:         domain.JobTypeRun,
		BuildStatus:     domain.BuildStatusSuccess,
		CreatedAt:       at(72 * time.Hour),
		LastExecutionID: "exec-resnet-2",
	},
		domain.Execution{
			JobExecutionID: "exec-resnet-2",
			Status:         domain.ExecutionStatusCompleted,
			CreatedAt:      at(3 * time.Hour),
			StartTime:      at(3 * time.Hour),
			EndTime:        at(2 * time.Hour),
			GPUInfo:        &domain.GPUInfo{Type: "A100", Memory: "80GB"},
		},
		domain.Execution{
			JobExecutionID: "exec-resnet-1",
			Status:         domain.ExecutionStatusFailed,
			CreatedAt:      at(26 * time.Hour),
			StartTime:      at(26 * time.Hour),
			EndTime:        at(25 * time.Hour),
			GPUInfo:        &domain.GPUInfo{Type: "A100", Memory: "80GB"},
		},
	)
	s.SetLogs("exec-resnet-2", "epoch 1/3 loss=0.91\nepoch 2/3 loss=0.54\nepoch 3/3 loss=0.37\ndone")
	s.SetLogs("exec-resnet-1", "CUDA out of memory")
	s.SetBuildLogs("train-resnet", "Step 1/4 : FROM pytorch/pytorch:2.4.0-cuda12.1\nSuccessfully built 3f2a1c")
	s.SetArtifact("exec-resnet-2", "resnet-weights.zip", []byte("PK\x03\x04demo"))
	s.SetConfig("train-resnet", domain.JobConfig{"request_input_dir": true, "gpu": "A100"})
	s.AddSchedule(domain.Schedule{
		ScheduleID: "sched-nightly",
		JobID:      "train-resnet",
		Workdays:   []domain.TimeWindow{{StartTime: "01:00", EndTime: "05:00"}},
	})

	s.AddJob(domain.Job{
		JobID:           "llm-eval",
		JobName:         "LLM evaluation",
		JobType:         domain.JobTypeRun,
		BuildStatus:     domain.BuildStatusSuccess,
		CreatedAt:       at(48 * time.Hour),
		LastExecutionID: "exec-eval-1",
	},
		domain.Execution{
			JobExecutionID: "exec-eval-1",
			Status:         domain.ExecutionStatusRunning,
			CreatedAt:      at(10 * time.Minute),
			StartTime:      at(9 * time.Minute),
			GPUInfo:        &domain.GPUInfo{Type: "H100", Memory: "80GB"},
		},
	)
	s.SetLogs("exec-eval-1", "loading checkpoint...\nevaluating 1200 prompts")
	s.SetBuildLogs("llm-eval", "Successfully built 9be710")
	s.AddSchedule(domain.Schedule{
		ScheduleID:   "sched-weekly",
		JobID:        "llm-eval",
		ScheduleType: domain.ScheduleTypeWeekly,
		StartTime:    "06:30",
		DayOfWeek:    &monday,
	})

	s.AddJob(domain.Job{
		JobID:       "data-prep",
		JobName:     "Dataset preprocessing",
		JobType:     domain.JobTypeRun,
		BuildStatus: domain.BuildStatusBuilding,
		CreatedAt:   at(time.Hour),
	})
	s.SetBuildLogs("data-prep", "Step 2/6 : RUN pip install -r requirements.txt")

	s.AddJob(domain.Job{
		JobID:        "chat-api",
		JobName:      "Chat inference API",
		JobType:      domain.JobTypeDeploy,
		BuildStatus:  domain.BuildStatusSuccess,
		CreatedAt:    at(240 * time.Hour),
		JobURL:       "https://chat-api.demo.local",
		HealthStatus: "healthy",
	},
		domain.Execution{
			JobExecutionID: "exec-chat-1",
			Status:         domain.ExecutionStatusRunning,
			CreatedAt:      at(200 * time.Hour),
			StartTime:      at(200 * time.Hour),
			HealthStatus:   "healthy",
		},
	)
	s.SetBuildLogs("chat-api", "Successfully built 51d0e2")
}
