package main

import (
	"fmt"
	"io"
	"quiet/internal/packet"
)

func writeRequest(w io.Writer, req []byte) {
	fmt.Fprintf(w, "Sending\n% x\n", req)
}

func writeReport(w io.Writer, r packet.Response) {
	fmt.Fprintf(w, "Received\n"+
		"      Version: %d\n"+
		"      PacketType: %d\n"+
		"      Is Quiet Time: %t\n"+
		"      Wake up in: %d hours\n"+
		"      Who R U: %s\n",
		r.Version, byte(r.Type), r.IsQuiet, r.WakeUp, r.Whoru)
}
