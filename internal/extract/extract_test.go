// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/healthexport/internal/healthkit"
	"github.com/cardinalhq/healthexport/internal/record"
	"github.com/cardinalhq/healthexport/internal/xmlchunk"
)

type memInput struct {
	data   []byte
	stream io.Reader
}

func (m memInput) Streaming() bool { return m.stream != nil }
func (m memInput) Bytes() []byte   { return m.data }
func (m memInput) Reader() io.Reader {
	if m.stream != nil {
		return m.stream
	}
	return bytes.NewReader(m.data)
}

func buildExport(n int) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<HealthData locale=\"en_US\">\n")
	b.WriteString(` <ExportDate value="2024-01-01 00:00:00 +0000"/>` + "\n")
	for i := range n {
		switch i % 3 {
		case 0:
			fmt.Fprintf(&b, ` <Record type="HKQuantityTypeIdentifierStepCount" value="%d" startDate="2024-01-01 00:%02d:%02d +0000"/>`+"\n", i, i/60%60, i%60)
		case 1:
			fmt.Fprintf(&b, ` <Record type="HKQuantityTypeIdentifierHeartRate" value="%d" startDate="2024-01-02 00:00:%02d +0000">`+"\n", 60+i%40, i%60)
			b.WriteString(`  <MetadataEntry key="HKMetadataKeyHeartRateMotionContext" value="0"/>` + "\n")
			b.WriteString(" </Record>\n")
		case 2:
			fmt.Fprintf(&b, ` <Workout workoutActivityType="HKWorkoutActivityTypeRunning" duration="%d.5" startDate="2024-02-01 00:00:%02d +0000"/>`+"\n", i, i%60)
		}
	}
	b.WriteString("</HealthData>\n")
	return []byte(b.String())
}

func drain(t *testing.T, ex *Extraction) ([]string, Stats, error) {
	t.Helper()
	var got []string
	for rec := range ex.Records() {
		got = append(got, fingerprint(rec))
	}
	stats, err := ex.Wait()
	slices.Sort(got)
	return got, stats, err
}

func fingerprint(r record.Record) string {
	var b strings.Builder
	b.WriteString(r.GroupingKey())
	for _, f := range r.Fields() {
		b.WriteString("|" + f.Name + "=" + f.Value)
	}
	return b.String()
}

func reference(data []byte) []string {
	res := xmlchunk.ParseChunk(data, healthkit.NewDecoder().Decode)
	out := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		out = append(out, fingerprint(r))
	}
	slices.Sort(out)
	return out
}

func TestExtract_CompleteUnderConcurrency(t *testing.T) {
	data := buildExport(3000)
	want := reference(data)
	// Records, their nested MetadataEntry elements and ExportDate.
	require.Len(t, want, 4001)

	for _, workers := range []int{1, 4, 1000} {
		for _, stream := range []bool{false, true} {
			t.Run(fmt.Sprintf("workers=%d/stream=%v", workers, stream), func(t *testing.T) {
				in := memInput{data: data}
				if stream {
					in = memInput{stream: iotest.HalfReader(bytes.NewReader(data))}
				}
				cfg := Config{Workers: workers, ChunkSize: 4096, ChannelCapacity: 8}

				got, stats, err := drain(t, Extract(context.Background(), in, healthkit.NewDecoder().Decode, cfg))
				require.NoError(t, err)
				assert.Equal(t, want, got)
				assert.Equal(t, int64(len(want)), stats.Records)
				assert.Equal(t, int64(len(data)), stats.Bytes)
				assert.Greater(t, stats.Chunks, int64(1))
				assert.Zero(t, stats.TruncatedChunks)
				assert.Zero(t, stats.Dropped)
				assert.Equal(t, int64(1), stats.Skipped)
			})
		}
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	got, stats, err := drain(t, Extract(context.Background(), memInput{data: []byte{}}, healthkit.NewDecoder().Decode, Config{}))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, stats.Chunks)
}

func TestExtract_DroppedElementsCounted(t *testing.T) {
	data := []byte(`<HealthData><Workout duration="x"/><Workout duration="1"/><Workout duration="y"/></HealthData>`)
	got, stats, err := drain(t, Extract(context.Background(), memInput{data: data}, healthkit.NewDecoder().Decode, Config{Workers: 2}))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, int64(4), stats.Elements)
}

func TestExtract_MaxDecodeErrors(t *testing.T) {
	var b strings.Builder
	b.WriteString("<HealthData>")
	for range 50 {
		b.WriteString(`<Workout duration="bad"/>`)
	}
	b.WriteString("</HealthData>")

	cfg := Config{Workers: 2, ChunkSize: 64, MaxDecodeErrors: 5}
	_, stats, err := drain(t, Extract(context.Background(), memInput{data: []byte(b.String())}, healthkit.NewDecoder().Decode, cfg))
	assert.ErrorIs(t, err, ErrTooManyDecodeErrors)
	assert.Greater(t, stats.Dropped, int64(5))
}

func TestExtract_TruncatedChunkKeepsEarlierRecords(t *testing.T) {
	data := []byte(`<HealthData><Workout duration="1"/><Workout duration="3`)
	got, stats, err := drain(t, Extract(context.Background(), memInput{data: data}, healthkit.NewDecoder().Decode, Config{}))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(1), stats.TruncatedChunks)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestExtract_UnreadableElementLosesOnlyItself(t *testing.T) {
	data := []byte("<HealthData>\n" +
		" <Workout duration=\"1\"/>\n" +
		" <Workout duration=\"2\" sourceName=\"Caf\xe9\"/>\n" +
		" <Workout duration=\"3\" device=\"&nbsp;\"/>\n" +
		" <Workout duration=\"4\"/>\n" +
		"</HealthData>\n")
	got, stats, err := drain(t, Extract(context.Background(), memInput{data: data}, healthkit.NewDecoder().Decode, Config{}))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Zero(t, stats.TruncatedChunks)
}

func TestExtract_NestedElementsBecomeRecords(t *testing.T) {
	data := []byte(`<HealthData>
 <Workout workoutActivityType="HKWorkoutActivityTypeRunning" duration="30">
  <WorkoutActivity uuid="A1" startDate="2024-05-01 07:00:00 +0000" duration="30"/>
  <MetadataEntry key="HKIndoorWorkout" value="0"/>
 </Workout>
 <Record type="HKQuantityTypeIdentifierHeartRateVariabilitySDNN" value="40">
  <HeartRateVariabilityMetadataList>
   <InstantaneousBeatsPerMinute bpm="61" time="7:01:02.34 AM"/>
  </HeartRateVariabilityMetadataList>
 </Record>
</HealthData>
`)
	got, stats, err := drain(t, Extract(context.Background(), memInput{data: data}, healthkit.NewDecoder().Decode, Config{Workers: 2}))
	require.NoError(t, err)

	var keys []string
	for _, fp := range got {
		keys = append(keys, strings.SplitN(fp, "|", 2)[0])
	}
	assert.ElementsMatch(t, []string{
		"Workout",
		"WorkoutActivity",
		"MetadataEntry",
		"HKQuantityTypeIdentifierHeartRateVariabilitySDNN",
		"HeartRateVariabilityMetadataList",
		"InstantaneousBeatsPerMinute",
	}, keys)
	assert.Equal(t, int64(7), stats.Elements)
	assert.Equal(t, int64(6), stats.Records)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Zero(t, stats.Dropped)
}

func TestExtract_WorkerPanic(t *testing.T) {
	decode := func(name string, attrs []record.Attr) (record.Record, error) {
		if name == "Boom" {
			panic("decoder exploded")
		}
		return healthkit.NewDecoder().Decode(name, attrs)
	}
	data := buildExport(300)
	data = append(data, []byte("\n<Boom/>\n")...)

	_, _, err := drain(t, Extract(context.Background(), memInput{data: data}, decode, Config{Workers: 4, ChunkSize: 1024}))
	require.ErrorIs(t, err, ErrWorkerPanic)
	assert.Contains(t, err.Error(), "decoder exploded")
}

func TestExtract_StreamReadError(t *testing.T) {
	in := memInput{stream: io.MultiReader(bytes.NewReader(buildExport(10)), iotest.ErrReader(errors.New("disk gone")))}
	_, _, err := drain(t, Extract(context.Background(), in, healthkit.NewDecoder().Decode, Config{ChunkSize: 128}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestExtract_CancelStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	data := buildExport(5000)
	ex := Extract(ctx, memInput{data: data}, healthkit.NewDecoder().Decode, Config{Workers: 4, ChunkSize: 1024, ChannelCapacity: 1})

	// Take one record, then walk away without draining.
	<-ex.Records()
	cancel()

	_, err := ex.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}
