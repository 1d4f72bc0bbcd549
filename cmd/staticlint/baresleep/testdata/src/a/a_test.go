package a

import "time"

func helperLoop() {
	for i := 0; i < 3; i++ {
		time.Sleep(time.Millisecond)
	}
}
