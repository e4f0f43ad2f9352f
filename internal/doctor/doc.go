// Package doctor runs health checks over the path settings, the simulator
// data directory, the download directory and installed catalogs, printing
// one tagged line per finding. With fix enabled it repairs what it can.
package doctor
