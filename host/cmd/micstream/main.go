package main

import (
	"flag"
	"fmt"
	"os"

	"gomic/core"
	"gomic/host/capture"
	"gomic/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 921600, "Baud rate (ignored for USB CDC)")
	port    = flag.Int("port", 0, "I2S port number (0 or 1)")
	rate    = flag.Int("rate", 16000, "Sample rate in Hz")
	bits    = flag.Int("bits", 16, "Bits per sample (8, 16, 24, 32)")
	stereo  = flag.Bool("stereo", false, "Capture both channels (default mono, left slot)")
	seconds = flag.Int("seconds", 5, "Capture duration in seconds")
	timeout = flag.Int("timeout", 1000, "Per-read timeout in ms (-1 = block)")
	sck     = flag.Int("sck", 14, "Bit clock GPIO")
	ws      = flag.Int("ws", 15, "Word select GPIO")
	sdin    = flag.Int("sdin", 16, "Serial data in GPIO")
	out     = flag.String("out", "capture.wav", "Output WAV file")
)

func main() {
	flag.Parse()

	cfg := core.DefaultConfig(core.PortID(*port))
	cfg.SampleRate = int32(*rate)
	cfg.Bits = core.BitsPerSample(*bits)
	cfg.CommFormat = core.CommI2S | core.CommMSB
	cfg.ChannelFormat = core.ChannelOnlyLeft
	channels := uint16(1)
	if *stereo {
		cfg.ChannelFormat = core.ChannelRightLeft
		channels = 2
	}
	cfg.SCK = core.PinRef(*sck)
	cfg.WS = core.PinRef(*ws)
	cfg.SDIn = core.PinRef(*sdin)

	serialCfg := serial.DefaultConfig(*device)
	serialCfg.Baud = *baud

	fmt.Printf("Connecting to %s...\n", *device)
	client, err := capture.Connect(serialCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.Configure(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configure: %v\n", err)
		os.Exit(1)
	}
	defer client.Deinit()

	if dump, err := client.Dump(); err == nil {
		fmt.Println(dump)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	wav, err := capture.NewWAVWriter(f, uint32(*rate), uint16(*bits), channels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	total := *rate * (*bits / 8) * int(channels) * *seconds
	fmt.Printf("Capturing %d bytes (%ds at %d Hz)...\n", total, *seconds, *rate)

	n, err := client.Capture(wav, total, int32(*timeout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: capture stopped after %d bytes: %v\n", n, err)
	}
	if err := wav.Finalize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d bytes to %s\n", n, *out)
}
