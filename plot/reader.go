package plot

import (
	"bufio"
	"encoding/binary"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"github.com/spf13/afero"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/signing"
)

// Plot is an opened plot file. The file is reopened for every lookup so a plot never
// pins a descriptor and a vanished file surfaces as a lookup error.
type Plot struct {
	fs          afero.Fs
	info        types.PlotInfo
	local       *signing.PrivateKey
	tableOffset int64
}

// Proof is an entry found for a challenge.
type Proof struct {
	Proof   []byte
	Quality types.Bytes32
}

// Open reads and validates the header of the plot at path.
func Open(fs afero.Fs, path string) (*Plot, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrDiskIO, path, err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", types.ErrDiskIO, path, err)
	}

	var hdr Header
	offset, err := hdr.DecodeScale(scale.NewDecoder(bufio.NewReader(f)))
	if err != nil {
		return nil, fmt.Errorf("decode header of %s: %w", path, err)
	}
	if err := hdr.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if want := int64(offset) + TableSize(hdr.K); stat.Size() != want {
		return nil, fmt.Errorf("%w: %s has size %d, expected %d", ErrCorrupted, path, stat.Size(), want)
	}
	local, plotPK, id, err := hdr.Identity()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Plot{
		fs: fs,
		info: types.PlotInfo{
			PlotID:                 id,
			K:                      hdr.K,
			Path:                   path,
			Size:                   stat.Size(),
			PoolPublicKey:          hdr.PoolPublicKey,
			PoolContractPuzzleHash: hdr.PoolContractPuzzleHash,
			PlotPublicKey:          plotPK,
			FarmerPublicKey:        hdr.FarmerPublicKey,
			LocalPublicKey:         local.PublicKey(),
		},
		local:       local,
		tableOffset: int64(offset),
	}, nil
}

// Info describes the plot.
func (p *Plot) Info() *types.PlotInfo {
	return &p.info
}

// ID of the plot.
func (p *Plot) ID() types.Bytes32 {
	return p.info.PlotID
}

// LocalKey is the harvester's share of the plot key.
func (p *Plot) LocalKey() *signing.PrivateKey {
	return p.local
}

// Summary is the inventory view of the plot.
func (p *Plot) Summary() types.PlotSummary {
	return types.PlotSummary{
		PlotID:                 p.info.PlotID,
		K:                      p.info.K,
		PoolPublicKey:          p.info.PoolPublicKey,
		PoolContractPuzzleHash: p.info.PoolContractPuzzleHash,
		PlotPublicKey:          p.info.PlotPublicKey,
	}
}

// ProofOfSpace assembles the proof of space for an entry found with challenge.
func (p *Plot) ProofOfSpace(challenge types.Bytes32, proof []byte) types.ProofOfSpace {
	return types.ProofOfSpace{
		Challenge:              challenge,
		PoolPublicKey:          p.info.PoolPublicKey,
		PoolContractPuzzleHash: p.info.PoolContractPuzzleHash,
		PlotPublicKey:          p.info.PlotPublicKey,
		Size:                   p.info.K,
		Proof:                  proof,
	}
}

// Lookup returns the proofs stored in the bucket the challenge selects. An empty result
// is not an error.
func (p *Plot) Lookup(challenge types.Bytes32) ([]Proof, error) {
	f, err := p.fs.Open(p.info.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrDiskIO, p.info.Path, err)
	}
	defer f.Close()

	bucket := challengeBucket(challenge, p.info.K)
	buf := make([]byte, SlotsPerBucket*EntrySize)
	off := p.tableOffset + int64(bucket)*int64(len(buf))
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("%w: read %s at %d: %w", types.ErrDiskIO, p.info.Path, off, err)
	}

	var proofs []Proof
	for i := 0; i < SlotsPerBucket; i++ {
		entry := buf[i*EntrySize : (i+1)*EntrySize]
		x := binary.BigEndian.Uint64(entry)
		if x == 0 {
			break
		}
		if bucketOf(fValue(p.info.PlotID, x), p.info.K) != bucket {
			return nil, fmt.Errorf("%w: %s bucket %d slot %d", ErrCorrupted, p.info.Path, bucket, i)
		}
		proof := append([]byte(nil), entry...)
		proofs = append(proofs, Proof{Proof: proof, Quality: QualityString(challenge, proof)})
	}
	return proofs, nil
}
