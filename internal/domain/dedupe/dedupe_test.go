package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dedupe "github.com/okian/facepace/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should be empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When claiming keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key is new", func() {
				seen := d.SeenAndRecord(ctx, "session-1")

				Convey("Then it should return false and record the key", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is already claimed", func() {
				d.SeenAndRecord(ctx, "session-1")
				seen := d.SeenAndRecord(ctx, "session-1")

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is released", func() {
				d.SeenAndRecord(ctx, "session-1")
				d.Unrecord(ctx, "session-1")

				Convey("Then it can be claimed again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "session-1"), ShouldBeFalse)
				})
			})

			Convey("And an unknown key is released", func() {
				d.Unrecord(ctx, "nope")

				Convey("Then nothing changes", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When the deduper is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "c")

			Convey("Then the oldest claim is evicted", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When claims carry a ttl", func() {
			now := time.Unix(1_700_000_000, 0)
			d := dedupe.NewInMemoryDeduper(
				dedupe.WithTTL(time.Minute),
				dedupe.WithClock(func() time.Time { return now }),
			)
			d.SeenAndRecord(ctx, "s")

			Convey("Then a fresh claim still blocks", func() {
				now = now.Add(30 * time.Second)
				So(d.SeenAndRecord(ctx, "s"), ShouldBeTrue)
			})

			Convey("Then an expired claim is treated as released", func() {
				now = now.Add(2 * time.Minute)
				So(d.SeenAndRecord(ctx, "s"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When many goroutines race for the same key", func() {
			d := dedupe.NewInMemoryDeduper()
			var winners atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 64; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(ctx, "hot") {
						winners.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(winners.Load(), ShouldEqual, 1)
			})
		})

		Convey("When many distinct keys are claimed concurrently", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i))
				}(i)
			}
			wg.Wait()

			Convey("Then all are recorded", func() {
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
