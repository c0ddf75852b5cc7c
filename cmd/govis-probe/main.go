// govis-probe is a discovery smoke-test: it runs the GV and U3V probers and
// prints whatever descriptors they find. It is not the CLI tool named out of
// scope in spec.md §6 -- it exists only to exercise discovery/gv and
// discovery/u3v end to end against real hardware or a subnet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/lbnl-vision/gogenicam/discovery"
	gvdiscovery "github.com/lbnl-vision/gogenicam/discovery/gv"
	u3vdiscovery "github.com/lbnl-vision/gogenicam/discovery/u3v"
)

func main() {
	broadcast := flag.String("broadcast", "255.255.255.255:3956", "GVCP broadcast address")
	window := flag.Duration("window", gvdiscovery.DefaultWindow, "GVCP broadcast collection window")
	skipGV := flag.Bool("no-gv", false, "skip GigE Vision discovery")
	skipU3V := flag.Bool("no-u3v", false, "skip USB3 Vision discovery")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *window+5*time.Second)
	defer cancel()

	var all []discovery.Descriptor

	if !*skipGV {
		p := gvdiscovery.New(*broadcast, gvdiscovery.WithLogger(log), gvdiscovery.WithBroadcastWindow(*window))
		found, err := p.Probe(ctx)
		if err != nil {
			log.Error("gv probe failed", zap.Error(err))
		}
		all = append(all, found...)
	}

	if !*skipU3V {
		usbCtx := gousb.NewContext()
		defer usbCtx.Close()
		p := u3vdiscovery.New(usbCtx, u3vdiscovery.WithLogger(log))
		found, err := p.Probe(ctx)
		if err != nil {
			log.Error("u3v probe failed", zap.Error(err))
		}
		all = append(all, found...)
	}

	for _, d := range all {
		fmt.Printf("%-36s %-16s %-16s %-16s %s\n", d.ID, d.Vendor, d.Model, d.Serial, d.Address)
	}
	if len(all) == 0 {
		fmt.Println("no devices found")
	}
}
