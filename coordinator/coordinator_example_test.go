// Copyright 2016 Aleksandr Demakin. All rights reserved.

package coordinator_test

import (
	"context"
	"fmt"

	"github.com/nxgtw/shmsync/coordinator"
)

func ExampleRun() {
	cfg := coordinator.DefaultConfig()
	cfg.WorkerCount = 5
	cfg.Roles = coordinator.RoleMix{Readers: 4, Writers: 1}
	cfg.LockKind = coordinator.LockRW
	cfg.OpsPerWorker = 100
	report, err := coordinator.Run(context.Background(), cfg)
	if err != nil {
		panic(err)
	}
	fmt.Println(report.Phase, report.Verdict.Reason, report.Observed)
	// Output: allDone ok 100
}
