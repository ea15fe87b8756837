package bundle

// Header is the 60-byte little-endian framing at the start of every
// Oodle-compressed container:
//
//	offset  size  field
//	0       4     UncompressedSize (low, ignored — superseded by the u64 below)
//	4       4     CompressedSize (low, ignored)
//	8       4     HeadSize (ignored)
//	12      4     Compressor (first-file marker, ignored)
//	16      4     Unknown1 (ignored)
//	20      8     UncompressedSizeLong
//	28      8     CompressedSizeLong (ignored)
//	36      4     ChunkCount
//	40      4     ChunkSize (granularity)
//	44      16    Unknown3..6 (ignored)
//	60      4*N   per-block compressed sizes
type Header struct {
	UncompressedSize     int32
	CompressedSize       int32
	HeadSize             int32
	Compressor           int32
	Unknown1             int32
	UncompressedSizeLong int64
	CompressedSizeLong   int64
	ChunkCount           int32
	ChunkSize            int32
	Unknown3             int32
	Unknown4             int32
	Unknown5             int32
	Unknown6             int32
}

// HeaderSize is the fixed portion of Header before the per-block size table.
const HeaderSize = 60
