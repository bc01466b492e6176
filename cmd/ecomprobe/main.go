package main

import (
	"github.com/yorozuya-cybersecurity/ecomprobe/internal/config"
	"github.com/yorozuya-cybersecurity/ecomprobe/pkg/cli"
)

func main() {
	config.SetDefaultConfig()
	cli.Execute()
}
