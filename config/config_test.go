package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When reading a config document", t, func() {
		Convey("Fields in the definition override the defaults", func() {
			path := writeConfig(t, `
kind: gridmap
def:
  server:
    port: "9090"
  link:
    pong_wait: 2s
  map:
    end:
      x: 7
      y: 10
  mode: manual
  settings:
    backend: redis
    key_prefix: "robot:"
`)
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.Addr(), ShouldEqual, ":9090")
			So(cfg.Link.PongWait, ShouldEqual, 2*time.Second)
			So(cfg.Link.PingInterval, ShouldEqual, Default().Link.PingInterval)
			So(cfg.Map.End.X, ShouldEqual, 7)
			So(cfg.Map.End.Y, ShouldEqual, 10)
			So(cfg.Mode, ShouldEqual, "manual")
			So(cfg.Settings.Backend, ShouldEqual, "redis")
			So(cfg.Settings.KeyPrefix, ShouldEqual, "robot:")
			So(cfg.Settings.RedisAddr, ShouldEqual, "127.0.0.1:6379")
		})

		Convey("Another kind is rejected", func() {
			path := writeConfig(t, "kind: training\ndef: {}\n")
			_, err := FromYaml(path)
			So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
		})

		Convey("A missing file is an error", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
