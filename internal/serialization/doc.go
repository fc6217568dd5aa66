// Package serialization reads and writes .born files, the container eisnet
// networks are saved in.
//
// A file holds a state dict plus a JSON header with the architecture type and
// string metadata (eisnet stores meta.json and arch.json there):
//
//	0x00  magic "BORN"
//	0x04  format version, uint32 LE
//	0x08  flags, uint32 LE
//	0x0C  reserved
//	0x10  JSON header size, uint64 LE
//	0x18  data section size, uint64 LE
//	0x20  SHA-256 of the data section
//	0x40  JSON header, zero padded to a multiple of 64 bytes
//	      tensor data, little endian, tensors sorted by name and packed
//
// Readers reject files whose checksum does not match or whose tensors do not
// tile the data section exactly.
//
//	err := serialization.WriteFile("simplenet100-10.born", net.StateDict(), "simple", map[string]string{
//	    "meta.json": metaJSON,
//	})
//
//	r, err := serialization.Open("simplenet100-10.born")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stateDict, err := r.StateDict()
package serialization
