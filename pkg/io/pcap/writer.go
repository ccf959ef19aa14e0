package pcap

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65536

var (
	clientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// Writer writes HTTP exchanges as Ethernet/IP/TCP packets to a pcap stream.
// No handshake is emitted; every payload travels in one PSH/ACK segment.
type Writer struct {
	w          *pcapgo.Writer
	buf        gopacket.SerializeBuffer
	serverPort layers.TCPPort
	nextPort   layers.TCPPort
}

// NewWriter writes the pcap file header to dst.
func NewWriter(dst io.Writer) (*Writer, error) {
	w := pcapgo.NewWriter(dst)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{
		w:          w,
		buf:        gopacket.NewSerializeBuffer(),
		serverPort: 80,
		nextPort:   49152,
	}, nil
}

// WriteExchange writes a request from client to server followed by the
// response, both stamped at ts.
func (w *Writer) WriteExchange(ts time.Time, client, server net.IP, request, response []byte) error {
	port := w.ephemeralPort()
	if err := w.writeSegment(ts, client, server, clientMAC, serverMAC, port, w.serverPort, request); err != nil {
		return err
	}
	return w.writeSegment(ts, server, client, serverMAC, clientMAC, w.serverPort, port, response)
}

func (w *Writer) ephemeralPort() layers.TCPPort {
	port := w.nextPort
	w.nextPort++
	if w.nextPort == 0 {
		w.nextPort = 49152
	}
	return port
}

func (w *Writer) writeSegment(ts time.Time, src, dst net.IP, srcMAC, dstMAC net.HardwareAddr,
	srcPort, dstPort layers.TCPPort, payload []byte) error {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	tcp := &layers.TCP{SrcPort: srcPort, DstPort: dstPort, PSH: true, ACK: true, Window: 65535}

	var network gopacket.SerializableLayer
	if src4, dst4 := src.To4(), dst.To4(); src4 != nil && dst4 != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: src4, DstIP: dst4}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolTCP, SrcIP: src, DstIP: dst}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(w.buf, opts, eth, network, tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}

	data := w.buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}
