package placeholder

import (
	"bytes"
	"encoding/binary"
)

// minimalMP4 builds a structurally valid, trackless MP4: ftyp, a moov with
// only an mvhd, and a free box. Players accept it and show nothing.
func minimalMP4() []byte {
	var out bytes.Buffer

	ftyp := new(bytes.Buffer)
	ftyp.WriteString("isom")
	_ = binary.Write(ftyp, binary.BigEndian, uint32(0x200))
	for _, brand := range []string{"isom", "iso2", "mp41"} {
		ftyp.WriteString(brand)
	}
	writeBox(&out, "ftyp", ftyp.Bytes())

	writeBox(&out, "moov", box("mvhd", movieHeader()))
	writeBox(&out, "free", nil)
	return out.Bytes()
}

func movieHeader() []byte {
	const timescale = 1000
	b := new(bytes.Buffer)
	_ = binary.Write(b, binary.BigEndian, uint32(0))          // version 0, flags
	_ = binary.Write(b, binary.BigEndian, uint32(0))          // creation time
	_ = binary.Write(b, binary.BigEndian, uint32(0))          // modification time
	_ = binary.Write(b, binary.BigEndian, uint32(timescale))  // timescale
	_ = binary.Write(b, binary.BigEndian, uint32(0))          // duration
	_ = binary.Write(b, binary.BigEndian, uint32(0x00010000)) // rate 1.0
	_ = binary.Write(b, binary.BigEndian, uint16(0x0100))     // volume 1.0
	b.Write(make([]byte, 10))                                 // reserved
	for _, v := range []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		_ = binary.Write(b, binary.BigEndian, v) // unity matrix
	}
	b.Write(make([]byte, 24))                        // pre_defined
	_ = binary.Write(b, binary.BigEndian, uint32(1)) // next track id
	return b.Bytes()
}

func box(typ string, payload []byte) []byte {
	var b bytes.Buffer
	writeBox(&b, typ, payload)
	return b.Bytes()
}

func writeBox(w *bytes.Buffer, typ string, payload []byte) {
	_ = binary.Write(w, binary.BigEndian, uint32(8+len(payload)))
	w.WriteString(typ)
	w.Write(payload)
}
