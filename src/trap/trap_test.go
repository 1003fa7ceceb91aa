package trap

import (
	"bytes"
	"debug/elf"
	"strings"
	"testing"
	"time"

	"equanimity/src/joy"
	"equanimity/src/lib/loader"
	"equanimity/src/lib/timeline"
	"equanimity/src/user"
)

// reportChild spawns the named app, waits for it and prints its exit code.
func reportChild(name string) user.Program {
	return func(e *user.Env) int32 {
		pid := e.Spawn(name)
		if pid < 0 {
			e.Printf("spawn %s failed\n", name)
			return 1
		}
		_, code := e.Wait(pid)
		e.Printf("%s exited with %d\n", name, code)
		return 0
	}
}

// mailSender posts a long and a short message to pid 0.
func mailSender(e *user.Env) int32 {
	buf := e.Alloca(300)
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i % 251)
	}
	e.Store(buf, data)
	e.Printf("sent %d\n", e.MailWrite(0, buf, 300))
	e.Printf("sent %d\n", e.MailWrite(0, buf+1, 40))
	return 0
}

// mailReceiver waits for mail and reads both messages with different
// buffer sizes.
func mailReceiver(e *user.Env) int32 {
	if e.GetPid() != 0 {
		e.Printf("receiver is pid %d\n", e.GetPid())
		return 1
	}
	buf := e.Alloca(512)
	for i := 0; e.MailRead(buf, 0) != 0; i++ {
		if i == 100 {
			e.Printf("no mail arrived\n")
			return 1
		}
		e.Yield()
	}
	n := e.MailRead(buf, 512)
	got := e.Load(buf, uint64(n))
	for i, b := range got {
		if b != byte(i%251) {
			e.Printf("byte %d is %d\n", i, b)
			return 1
		}
	}
	e.Printf("read %d\n", n)
	for i := 0; e.MailRead(buf, 0) != 0; i++ {
		if i == 100 {
			e.Printf("second message missing\n")
			return 1
		}
		e.Yield()
	}
	n = e.MailRead(buf, 10)
	e.Printf("read %d starting at %d\n", n, e.Load(buf, 1)[0])
	e.Printf("left %d\n", e.MailRead(buf, 0))
	return 0
}

func init() {
	user.Register("test_mail_receiver", mailReceiver)
	user.Register("test_mail_sender", mailSender)
	user.Register("test_report_fault", reportChild("fault"))
	user.Register("test_report_mmap_fault", reportChild("mmap_fault"))
	user.Register("test_report_bogus", reportChild("bogus"))
}

func runMachine(t *testing.T, cfg joy.Config, names ...string) string {
	t.Helper()
	var out bytes.Buffer
	cfg.Stdout = &out
	k, err := NewMachine(cfg, names...)
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	t.Cleanup(k.Close)
	// an image whose text is not a program
	k.FS().WriteFile("bogus", loader.BuildELF(loader.UserProcessLinkAddr, []loader.Segment{
		{VAddr: loader.UserProcessLinkAddr, Flags: elf.PF_R | elf.PF_X, Data: []byte("\x13\x00\x00\x00")},
	}))
	if h := k.Run(); h != joy.HaltAllCompleted {
		t.Fatalf("expected all completed, got %v", h)
	}
	if n := len(k.Snapshot()); n != 0 {
		t.Errorf("%d tasks left after halt", n)
	}
	return out.String()
}

func TestHello(t *testing.T) {
	out := runMachine(t, joy.Config{}, "hello")
	if out != "Hello, world!\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDemoApps(t *testing.T) {
	out := runMachine(t, joy.Config{}, "mmap", "mail", "pipe", "file", "spawn")
	for _, name := range []string{"mmap", "mail", "pipe", "file", "spawn"} {
		if !strings.Contains(out, "Test "+name+" OK!") {
			t.Errorf("%s did not pass:\n%s", name, out)
		}
	}
	if strings.Contains(out, "FAIL") {
		t.Errorf("failures reported:\n%s", out)
	}
	// spawn ran hello as its child
	if !strings.Contains(out, "Hello, world!") {
		t.Errorf("child output missing:\n%s", out)
	}
}

func TestFaultsKillTheTask(t *testing.T) {
	out := runMachine(t, joy.Config{},
		"test_report_fault", "test_report_mmap_fault", "test_report_bogus")
	for _, want := range []string{
		"fault exited with -2",
		"mmap_fault exited with -2",
		"bogus exited with -3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Should cause error") {
		t.Errorf("store to a read only page went through")
	}
}

func TestMailBetweenTasks(t *testing.T) {
	out := runMachine(t, joy.Config{}, "test_mail_receiver", "test_mail_sender")
	for _, want := range []string{
		"sent 256\n",
		"sent 40\n",
		"read 256\n",
		"read 10 starting at 1\n",
		"left -1\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestPowerAppsYield(t *testing.T) {
	out := runMachine(t, joy.Config{Policy: joy.PolicyFIFO}, "power_3", "power_5")
	if !strings.Contains(out, "Test power_3 OK!") || !strings.Contains(out, "Test power_5 OK!") {
		t.Errorf("power apps did not finish:\n%s", out)
	}
	// yields interleave the two
	first3 := strings.Index(out, "power_3 [")
	first5 := strings.Index(out, "power_5 [")
	done3 := strings.Index(out, "Test power_3 OK!")
	if first3 < 0 || first5 < 0 || first5 > done3 {
		t.Errorf("power_5 did not run before power_3 finished:\n%s", out)
	}
}

func TestStrideShares(t *testing.T) {
	rec := timeline.NewRecorder()
	cfg := joy.Config{
		Clock:  joy.NewStepClock(time.Millisecond),
		Slice:  10 * time.Millisecond,
		Tracer: rec,
	}
	out := runMachine(t, cfg, "stride0", "stride5")
	if !strings.Contains(out, "priority = 5,") || !strings.Contains(out, "priority = 10,") {
		t.Fatalf("stride apps did not finish:\n%s", out)
	}
	shares := rec.Shares()
	low, high := shares[0], shares[1]
	if low == 0 {
		t.Fatalf("stride0 never ran: %v", shares)
	}
	ratio := float64(high) / float64(low)
	if ratio < 1.5 || ratio > 2.5 {
		t.Errorf("expected priority 10 to get about twice the slices of priority 5, got %d and %d", high, low)
	}
}
