package plot

import (
	"bufio"
	"encoding/binary"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"github.com/spf13/afero"
)

// Create writes a plot for hdr to path. The table is filled deterministically from the
// plot id. The file is written under a temporary name and renamed into place so scans
// never observe a partial plot.
func Create(fs afero.Fs, path string, hdr Header) (*Plot, error) {
	if err := hdr.validate(); err != nil {
		return nil, err
	}
	_, _, id, err := hdr.Identity()
	if err != nil {
		return nil, err
	}

	buckets := NumBuckets(hdr.K)
	table := make([]byte, TableSize(hdr.K))
	fill := make([]uint8, buckets)
	for x := uint64(1); x <= buckets*SlotsPerBucket; x++ {
		b := bucketOf(fValue(id, x), hdr.K)
		if fill[b] == SlotsPerBucket {
			continue
		}
		off := (b*SlotsPerBucket + uint64(fill[b])) * EntrySize
		binary.BigEndian.PutUint64(table[off:], x)
		fill[b]++
	}

	tmp := path + ".tmp"
	f, err := fs.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	if _, err := hdr.EncodeScale(scale.NewEncoder(w)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(table); err != nil {
		f.Close()
		return nil, fmt.Errorf("write table: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return Open(fs, path)
}
