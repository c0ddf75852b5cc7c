// govis-bench drives a live GigE Vision device for a fixed duration and
// reports frame-rate, throughput and allocation statistics, with optional
// CPU/heap/execution-trace profiling -- the same measurement harness the
// teacher's V4L2 benchmark used, rewired to open a device over GVCP/GVSP
// instead of a local /dev/videoN node.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/device"
	"github.com/lbnl-vision/gogenicam/govis"
	streamgvsp "github.com/lbnl-vision/gogenicam/stream/gvsp"
	gvtransport "github.com/lbnl-vision/gogenicam/transport/gv"
	"github.com/lbnl-vision/gogenicam/wire/gvsp"
)

type Config struct {
	Address       string
	ListenAddr    string
	SCDARegister  uint64
	SCPRegister   uint64
	QueueDepth    int
	BufferSize    int
	Duration      time.Duration
	CPUProfile    string
	MemProfile    string
	TraceFile     string
	Verbose       bool
}

type Results struct {
	FramesCaptured   int
	FramesDropped    int
	Duration         time.Duration
	AvgFPS           float64
	TotalBytes       uint64
	AvgBytesPerFrame uint64
	MemAllocBytes    uint64
	MemAllocObjects  uint64
	NumGC            uint32
	GCPauseTotal     time.Duration
}

func main() {
	address := flag.String("address", "", "GVCP control address, host:port (required)")
	listen := flag.String("listen", ":0", "local UDP address to receive GVSP on")
	scda := flag.String("scda-register", "", "hex address of the stream channel destination-address register (optional)")
	scp := flag.String("scp-register", "", "hex address of the stream channel destination-port register (optional)")
	queueDepth := flag.Int("queue-depth", 4, "stream input/output queue depth")
	bufferSize := flag.Int("buffer-size", 4<<20, "bytes per stream buffer")
	duration := flag.Duration("duration", 10*time.Second, "capture duration")
	verbose := flag.Bool("verbose", false, "enable zap development logging")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile := flag.String("memprofile", "", "write memory profile to file")
	tracefile := flag.String("trace", "", "write execution trace to file")
	flag.Parse()

	if *address == "" {
		log.Fatal("-address is required")
	}

	cfg := Config{
		Address:    *address,
		ListenAddr: *listen,
		QueueDepth: *queueDepth,
		BufferSize: *bufferSize,
		Duration:   *duration,
		CPUProfile: *cpuprofile,
		MemProfile: *memprofile,
		TraceFile:  *tracefile,
		Verbose:    *verbose,
	}
	if *scda != "" {
		cfg.SCDARegister = parseHex(*scda)
	}
	if *scp != "" {
		cfg.SCPRegister = parseHex(*scp)
	}

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			log.Fatalf("create cpu profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("start cpu profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}
	if cfg.TraceFile != "" {
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			log.Fatalf("create trace file: %v", err)
		}
		defer f.Close()
		if err := trace.Start(f); err != nil {
			log.Fatalf("start trace: %v", err)
		}
		defer trace.Stop()
	}

	results := run(cfg)

	if cfg.MemProfile != "" {
		f, err := os.Create(cfg.MemProfile)
		if err != nil {
			log.Fatalf("create mem profile: %v", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatalf("write mem profile: %v", err)
		}
	}

	printResults(cfg, results)
}

func parseHex(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		log.Fatalf("invalid register address %q: %v", s, err)
	}
	return v
}

// udpPacketSource adapts a *net.UDPConn to gvsp.PacketSource for stream/gvsp.
type udpPacketSource struct {
	conn *net.UDPConn
	buf  []byte
}

func (s *udpPacketSource) ReadPacket(ctx context.Context) (gvsp.Header, error) {
	s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	n, _, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		if ctx.Err() != nil {
			return gvsp.Header{}, ctx.Err()
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return gvsp.Header{}, govis.ErrTimeout
		}
		return gvsp.Header{}, err
	}
	return gvsp.Decode(s.buf[:n])
}

func run(cfg Config) Results {
	zlog := zap.NewNop()
	if cfg.Verbose {
		zlog, _ = zap.NewDevelopment()
	}

	t, err := gvtransport.Dial(cfg.Address, gvtransport.WithLogger(zlog))
	if err != nil {
		log.Fatalf("dial %s: %v", cfg.Address, err)
	}
	defer t.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+10*time.Second)
	defer cancel()

	d, err := device.Open(ctx, govis.NewDeviceID("", "", cfg.Address), t, device.WithLogger(zlog))
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer d.Close()

	udpAddr, err := net.ResolveUDPAddr("udp4", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("resolve %s: %v", cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}
	defer conn.Close()

	if cfg.SCDARegister != 0 || cfg.SCPRegister != 0 {
		if err := negotiateStreamChannel(ctx, d, conn, cfg); err != nil {
			log.Fatalf("negotiate stream channel: %v", err)
		}
	}

	st := d.EnableStream(cfg.QueueDepth, cfg.BufferSize)
	src := &udpPacketSource{conn: conn, buf: make([]byte, 9000)}
	receiver := streamgvsp.NewReceiver(st, src, streamgvsp.WithLogger(zlog))

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go receiver.Run(runCtx)

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	results := Results{}
	deadline := time.Now().Add(cfg.Duration)
	start := time.Now()
	for time.Now().Before(deadline) {
		buf, err := st.PopOutput(ctx, 250*time.Millisecond)
		if err != nil {
			continue
		}
		if buf.Status != govis.BufferStatusSuccess {
			results.FramesDropped++
		} else {
			results.FramesCaptured++
			results.TotalBytes += uint64(buf.BytesFilled)
		}
		st.PushInput(buf)
	}
	results.Duration = time.Since(start)
	runCancel()
	st.Shutdown()

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	if results.FramesCaptured > 0 {
		results.AvgFPS = float64(results.FramesCaptured) / results.Duration.Seconds()
		results.AvgBytesPerFrame = results.TotalBytes / uint64(results.FramesCaptured)
	}
	results.MemAllocBytes = memAfter.TotalAlloc - memBefore.TotalAlloc
	results.MemAllocObjects = memAfter.Mallocs - memBefore.Mallocs
	results.NumGC = memAfter.NumGC - memBefore.NumGC
	results.GCPauseTotal = time.Duration(memAfter.PauseTotalNs - memBefore.PauseTotalNs)
	return results
}

// negotiateStreamChannel points the device's stream channel at this
// process's UDP socket by writing the destination address and port
// registers the caller identified, per spec.md §4.4's channel setup.
func negotiateStreamChannel(ctx context.Context, d *device.Device, conn *net.UDPConn, cfg Config) error {
	local := conn.LocalAddr().(*net.UDPAddr)
	if cfg.SCPRegister != 0 {
		if err := d.WriteRegister(ctx, cfg.SCPRegister, uint32(local.Port)); err != nil {
			return err
		}
	}
	if cfg.SCDARegister != 0 {
		ip := local.IP.To4()
		if ip == nil {
			return fmt.Errorf("benchmark: local address is not IPv4: %v", local.IP)
		}
		value := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
		if err := d.WriteRegister(ctx, cfg.SCDARegister, value); err != nil {
			return err
		}
	}
	return nil
}

func printResults(cfg Config, r Results) {
	sep := strings.Repeat("=", 60)
	fmt.Println("\n" + sep)
	fmt.Println("GOVIS STREAM BENCHMARK")
	fmt.Println(sep)
	fmt.Printf("Address:           %s\n", cfg.Address)
	fmt.Printf("Duration:          %v\n", cfg.Duration)
	fmt.Printf("Queue Depth:       %d\n", cfg.QueueDepth)
	fmt.Printf("Buffer Size:       %d bytes\n", cfg.BufferSize)
	fmt.Println()
	fmt.Printf("Frames Captured:   %d\n", r.FramesCaptured)
	fmt.Printf("Frames Dropped:    %d\n", r.FramesDropped)
	fmt.Printf("Actual Duration:   %v\n", r.Duration)
	fmt.Printf("Average FPS:       %.2f\n", r.AvgFPS)
	fmt.Printf("Total Data:        %.2f MB\n", float64(r.TotalBytes)/(1024*1024))
	fmt.Printf("Avg Bytes/Frame:   %d\n", r.AvgBytesPerFrame)
	if r.Duration > 0 {
		fmt.Printf("Throughput:        %.2f MB/s\n", float64(r.TotalBytes)/(1024*1024)/r.Duration.Seconds())
	}
	fmt.Println()
	fmt.Printf("Total Allocated:   %.2f MB\n", float64(r.MemAllocBytes)/(1024*1024))
	fmt.Printf("Total Allocations: %d\n", r.MemAllocObjects)
	fmt.Printf("GC Runs:           %d\n", r.NumGC)
	fmt.Printf("GC Pause Total:    %v\n", r.GCPauseTotal)
	fmt.Println(sep)
	if cfg.CPUProfile != "" {
		fmt.Printf("CPU profile: %s (go tool pprof %s)\n", cfg.CPUProfile, cfg.CPUProfile)
	}
	if cfg.MemProfile != "" {
		fmt.Printf("Mem profile: %s (go tool pprof %s)\n", cfg.MemProfile, cfg.MemProfile)
	}
	if cfg.TraceFile != "" {
		fmt.Printf("Trace: %s (go tool trace %s)\n", cfg.TraceFile, cfg.TraceFile)
	}
}
