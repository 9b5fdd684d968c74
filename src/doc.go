// Package b1ee implements a virtual Bluetooth Low Energy controller server:
// an HCI command/event endpoint per connected client, wired to a shared
// discrete-event radio simulation so independently connected clients can
// advertise to and scan for each other over a simulated RF medium.
package b1ee
