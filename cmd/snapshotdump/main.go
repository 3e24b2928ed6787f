// Command snapshotdump connects to a running duelnet server, records the
// snapshot stream for a fixed duration, and renders each snapshot to a
// PNG frame. It exists for visually auditing interest management and
// interpolation behavior (does a player pop in/out at the interest
// radius boundary, does the render look plausible) without wiring up a
// full game client.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"

	"duelnet/internal/client"
	"duelnet/internal/protocol"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "server websocket URL")
	origin := flag.String("origin", "http://localhost:8080", "Origin header to present")
	duration := flag.Duration("duration", 5*time.Second, "how long to record before dumping frames")
	outDir := flag.String("out", "./snapshotdump-frames", "output directory for PNG frames")
	canvasSize := flag.Int("size", 800, "canvas width/height in pixels")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("snapshotdump: creating output dir: %v", err)
	}

	conn, err := client.Dial(*addr, *origin)
	if err != nil {
		log.Fatalf("snapshotdump: dial failed: %v", err)
	}
	defer conn.Close()

	buf := client.NewSnapshotBuffer(2 * int(duration.Seconds()) * 10) // generous headroom over SNAPSHOT_RATE
	done := make(chan error, 1)
	go func() { done <- conn.Run(buf, nil) }()

	log.Printf("snapshotdump: recording for %s...", *duration)
	select {
	case <-time.After(*duration):
	case err := <-done:
		log.Printf("snapshotdump: connection ended early: %v", err)
	}

	snapshots := buf.All()
	log.Printf("snapshotdump: recorded %d snapshots, rendering to %s", len(snapshots), *outDir)

	for i, snap := range snapshots {
		framePath := filepath.Join(*outDir, fmt.Sprintf("frame-%05d.png", i))
		if err := renderFrame(snap, *canvasSize, framePath); err != nil {
			log.Printf("snapshotdump: frame %d: %v", i, err)
		}
	}
}

// renderFrame draws one snapshot's visible entities to a PNG, mapping
// world coordinates [WorldMin, WorldMax] onto the canvas.
func renderFrame(snap *protocol.Snapshot, size int, path string) error {
	dc := gg.NewContext(size, size)
	drawBackground(dc, size)
	drawGrid(dc, size)

	for _, entry := range snap.States {
		drawEntity(dc, size, entry)
	}
	drawHUD(dc, snap)

	return dc.SavePNG(path)
}

func worldToCanvas(v protocol.Vec2, size int) (float64, float64) {
	span := protocol.WorldMax - protocol.WorldMin
	x := (v.X - protocol.WorldMin) / span * float64(size)
	y := (v.Y - protocol.WorldMin) / span * float64(size)
	return x, y
}

func drawBackground(dc *gg.Context, size int) {
	dc.SetColor(color.RGBA{12, 12, 28, 255})
	dc.DrawRectangle(0, 0, float64(size), float64(size))
	dc.Fill()
}

func drawGrid(dc *gg.Context, size int) {
	dc.SetColor(color.RGBA{30, 30, 45, 255})
	dc.SetLineWidth(1)
	gridSize := float64(size) / 16.0
	for x := 0.0; x < float64(size); x += gridSize {
		dc.DrawLine(x, 0, x, float64(size))
		dc.Stroke()
	}
	for y := 0.0; y < float64(size); y += gridSize {
		dc.DrawLine(0, y, float64(size), y)
		dc.Stroke()
	}
}

func drawEntity(dc *gg.Context, size int, entry protocol.SnapshotEntry) {
	x, y := worldToCanvas(entry.State.Position, size)
	radius := 10.0

	switch entry.State.EntityType {
	case protocol.EntityPlayer:
		dc.SetColor(color.RGBA{80, 200, 255, 255})
		radius = 14
	case protocol.EntityNPC:
		dc.SetColor(color.RGBA{255, 120, 80, 255})
	case protocol.EntityMovingObstacle:
		dc.SetColor(color.RGBA{200, 200, 60, 255})
		radius = 18
	}
	dc.DrawCircle(x, y, radius)
	dc.Fill()

	dc.SetColor(color.White)
	dc.DrawStringAnchored(fmt.Sprintf("%d", entry.ID), x, y-radius-4, 0.5, 0.5)
}

func drawHUD(dc *gg.Context, snap *protocol.Snapshot) {
	dc.SetColor(color.White)
	dc.DrawStringAnchored(
		fmt.Sprintf("seq=%d baseline=%d entities=%d t=%dms", snap.Sequence, snap.BaselineSequence, len(snap.States), snap.TimestampMs),
		8, 8, 0, 1,
	)
}
