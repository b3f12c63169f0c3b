package device

import (
	"testing"
)

func TestPlatformGuaranteesCPU(t *testing.T) {
	p := NewPlatform()
	cpu := p.CPU()
	if cpu.Key().ServiceID != "cpu" {
		t.Fatalf("CPU() = %v, want service cpu", cpu.Key())
	}
}

func TestDefaultFallsBackToCPU(t *testing.T) {
	p := NewPlatform()
	dev := p.Default([]string{"gpu"}, nil)
	if dev.Key() != p.CPU().Key() {
		t.Errorf("Default() = %v, want cpu fallback", dev.Key())
	}
}

func TestDefaultWalksServicePriority(t *testing.T) {
	p := NewPlatform()
	p.Register(NewService("gpu", "gpu", 2, Discrete, 0))
	dev := p.Default([]string{"gpu", "cpu"}, []int{1})
	if dev.Key() != (Key{ServiceID: "gpu", DeviceID: 1}) {
		t.Errorf("Default() = %v, want gpu:1", dev.Key())
	}
}

func TestDefaultModsOutOfRangeID(t *testing.T) {
	p := NewPlatform()
	p.Register(NewService("gpu", "gpu", 2, Discrete, 0))
	dev := p.Default([]string{"gpu"}, []int{5}) // 5 mod 2 == 1
	if dev.Key() != (Key{ServiceID: "gpu", DeviceID: 1}) {
		t.Errorf("Default() = %v, want gpu:1 (5 mod 2)", dev.Key())
	}
}

func TestServiceDeviceUnavailable(t *testing.T) {
	p := NewPlatform()
	svc, _ := p.Service("cpu")
	if _, err := svc.Device(99); err == nil {
		t.Error("expected error for out-of-range device id")
	}
}

func TestServiceOpenUnsupported(t *testing.T) {
	svc := NewService("gpu", "gpu", 1, Discrete, 0)
	if _, err := svc.Open("gpu://remote"); err == nil {
		t.Error("expected ErrRemoteUnsupported")
	}
}

func TestBufferZeroAndCopy(t *testing.T) {
	p := NewPlatform()
	cpu := p.CPU()
	s := cpu.NewStream()
	defer s.Close()

	buf, err := cpu.NewBuffer(4)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	host := []byte{1, 2, 3, 4}
	buf.CopyAsyncFromHost(host, s)
	if err := s.BlockUntilIdle(); err != nil {
		t.Fatalf("BlockUntilIdle: %v", err)
	}
	out := make([]byte, 4)
	if err := buf.CopyToHost(out, s); err != nil {
		t.Fatalf("CopyToHost: %v", err)
	}
	for i := range host {
		if out[i] != host[i] {
			t.Fatalf("CopyToHost() = %v, want %v", out, host)
		}
	}
}
