package a

import (
	"context"
	"time"
)

func once() {
	time.Sleep(time.Millisecond)
}

func loop() {
	for i := 0; i < 3; i++ {
		time.Sleep(time.Millisecond) // want `time.Sleep in a loop ignores cancellation`
	}
}

func rangeLoop(items []int) {
	for range items {
		if true {
			time.Sleep(time.Millisecond) // want `time.Sleep in a loop ignores cancellation`
		}
	}
}

func closureInLoop() {
	for i := 0; i < 3; i++ {
		go func() {
			time.Sleep(time.Millisecond)
		}()
	}
}

func timerLoop(ctx context.Context) {
	for {
		t := time.NewTimer(time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
