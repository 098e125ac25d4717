// Package memory manages the per-instance sprite data shared between CPU and
// GPU.
//
// The instance buffer is a flat, reusable []float32 of fixed-stride records
// mirrored by one GPU buffer. It grows geometrically whenever a frame needs
// more records than it can hold, never shrinks, and only the records written
// in the current frame are uploaded.
package memory

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/horde/internal/gpu"
)

var memoryLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("HORDE_DEBUG_MEMORY") == "1" {
		memoryLogger = log.New(os.Stdout, "[memory] ", log.Ltime|log.Lmsgprefix)
	}
}

const (
	// GrowthFactor is applied to the requested record count whenever it
	// exceeds the current capacity.
	GrowthFactor = 1.5

	// Stride is the number of float32 scalars per instance record.
	Stride = 13
)

// Offsets of each field within a record, in floats.
const (
	OffsetCenter = 0 // vec2: device-space center
	OffsetSize   = 2 // float: size in physical pixels
	OffsetAngle  = 3 // float: rotation in radians
	OffsetUV     = 4 // vec4: u0, v0, u1, v1
	OffsetFlip   = 8 // float: +1 or -1
	OffsetTint   = 9 // vec4: r, g, b, a
)

// Record is one sprite instance.
type Record struct {
	Center mgl32.Vec2 // device-normalized
	SizePx float32
	Angle  float32
	UV     mgl32.Vec4 // u0, v0, u1, v1
	Flip   float32
	Tint   mgl32.Vec4
}

// Stats tracks metrics for the instance buffer.
type Stats struct {
	Capacity         int     // in records
	GPUBytes         int64   // currently allocated on the GPU
	GrowthEvents     int     // number of reallocations
	LastGrowthTimeUs float64 // time spent in the last reallocation
	LastUploadCount  int     // records uploaded by the last Upload
	LastUploadBytes  int64
	TotalUploadBytes int64
}

// InstanceBuffer owns the CPU-side record array and its GPU buffer.
type InstanceBuffer struct {
	device gpu.Device
	buffer gpu.Buffer
	data   []float32
	stats  Stats
}

// NewInstanceBuffer creates an empty instance buffer. No GPU memory is
// allocated until the first EnsureCapacity.
func NewInstanceBuffer(device gpu.Device) *InstanceBuffer {
	return &InstanceBuffer{
		device: device,
		buffer: device.NewBuffer(),
	}
}

// Buffer returns the GPU buffer holding the records.
func (ib *InstanceBuffer) Buffer() gpu.Buffer { return ib.buffer }

// Capacity returns the number of records the buffer can hold.
func (ib *InstanceBuffer) Capacity() int { return ib.stats.Capacity }

// EnsureCapacity grows the buffer to ceil(n*GrowthFactor) records if n
// exceeds the current capacity, and reports whether it did. Existing CPU-side
// records are preserved; GPU contents are discarded and must be re-uploaded.
func (ib *InstanceBuffer) EnsureCapacity(n int) bool {
	if n <= ib.stats.Capacity {
		return false
	}
	startTime := time.Now()

	newCapacity := int(math.Ceil(float64(n) * GrowthFactor))
	data := make([]float32, newCapacity*Stride)
	copy(data, ib.data)
	ib.data = data

	bytes := newCapacity * Stride * 4
	ib.device.AllocBuffer(ib.buffer, bytes)

	memoryLogger.Printf("instance buffer grew %s -> %s records (%s GPU)",
		formatNumber(int64(ib.stats.Capacity)), formatNumber(int64(newCapacity)), formatNumber(int64(bytes)))

	ib.stats.Capacity = newCapacity
	ib.stats.GPUBytes = int64(bytes)
	ib.stats.GrowthEvents++
	ib.stats.LastGrowthTimeUs = float64(time.Since(startTime).Microseconds())
	return true
}

// Write stores r at record index i. i must be below Capacity.
func (ib *InstanceBuffer) Write(i int, r Record) {
	rec := ib.data[i*Stride : (i+1)*Stride : (i+1)*Stride]
	rec[OffsetCenter+0] = r.Center[0]
	rec[OffsetCenter+1] = r.Center[1]
	rec[OffsetSize] = r.SizePx
	rec[OffsetAngle] = r.Angle
	copy(rec[OffsetUV:OffsetUV+4], r.UV[:])
	rec[OffsetFlip] = r.Flip
	copy(rec[OffsetTint:OffsetTint+4], r.Tint[:])
}

// Record returns the record at index i, as last written.
func (ib *InstanceBuffer) Record(i int) Record {
	rec := ib.data[i*Stride : (i+1)*Stride]
	return Record{
		Center: mgl32.Vec2{rec[OffsetCenter], rec[OffsetCenter+1]},
		SizePx: rec[OffsetSize],
		Angle:  rec[OffsetAngle],
		UV:     mgl32.Vec4{rec[OffsetUV], rec[OffsetUV+1], rec[OffsetUV+2], rec[OffsetUV+3]},
		Flip:   rec[OffsetFlip],
		Tint:   mgl32.Vec4{rec[OffsetTint], rec[OffsetTint+1], rec[OffsetTint+2], rec[OffsetTint+3]},
	}
}

// Upload writes the first used records to the GPU. Only used*Stride scalars
// are transferred, never the full capacity.
func (ib *InstanceBuffer) Upload(used int) error {
	if used > ib.stats.Capacity {
		return fmt.Errorf("upload of %d records exceeds capacity %d", used, ib.stats.Capacity)
	}
	ib.stats.LastUploadCount = used
	ib.stats.LastUploadBytes = int64(used * Stride * 4)
	if used == 0 {
		return nil
	}
	ib.device.WriteBuffer(ib.buffer, ib.data[:used*Stride])
	ib.stats.TotalUploadBytes += ib.stats.LastUploadBytes
	return nil
}

// Delete releases the GPU buffer.
func (ib *InstanceBuffer) Delete() {
	if ib.buffer != 0 {
		ib.device.DeleteBuffer(ib.buffer)
		ib.buffer = 0
	}
	ib.data = nil
	ib.stats.Capacity = 0
	ib.stats.GPUBytes = 0
}

// Stats returns the current buffer statistics.
func (ib *InstanceBuffer) Stats() Stats {
	return ib.stats
}

// PrintStats outputs buffer statistics with a utilization bar.
func (ib *InstanceBuffer) PrintStats() {
	stats := ib.Stats()
	util := 0.0
	if stats.Capacity > 0 {
		util = float64(stats.LastUploadCount) / float64(stats.Capacity)
	}
	memoryLogger.Printf("%s %.0f%% records live (%d/%d), %s GPU, %d growth events (%.2fμs last), %s uploaded total",
		makeUtilizationBar(util, 12),
		util*100,
		stats.LastUploadCount,
		stats.Capacity,
		formatNumber(stats.GPUBytes),
		stats.GrowthEvents,
		stats.LastGrowthTimeUs,
		formatNumber(stats.TotalUploadBytes),
	)
}

// makeUtilizationBar creates a visual bar for utilization percentage.
func makeUtilizationBar(utilization float64, width int) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}

	filled := int(utilization * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return bar
}

// formatNumber formats large numbers with K/M suffixes for readability.
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000.0)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000.0)
}
