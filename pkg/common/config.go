/**
 * Copyright 2020 The IcecaneDB Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// ServerConfig defines the configuration settings for the coordinator server.
type ServerConfig struct {
	// Name labels the coordinator in logs and metrics.
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Port    string `yaml:"port"`

	// MetricsAddress is the host:port of the prometheus endpoint. Empty disables it.
	MetricsAddress string `yaml:"metricsAddress"`

	LogLevel string `yaml:"logLevel"`
}

// NewDefaultServerConfig returns a new default server configuration.
func NewDefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Name:           "icecaneidb",
		Address:        "127.0.0.1",
		Port:           "9100",
		MetricsAddress: "127.0.0.1:9101",
		LogLevel:       "info",
	}
}

// Validate validates a ServerConfig and returns an error if it's invalid.
func (conf *ServerConfig) Validate() error {
	if conf.Name == "" {
		return fmt.Errorf("invalid name provided in config")
	}
	if conf.Address == "" {
		return fmt.Errorf("invalid address provided in config")
	}
	if conf.Port == "" {
		return fmt.Errorf("invalid port provided in config")
	}
	if _, err := log.ParseLevel(conf.LogLevel); err != nil {
		return fmt.Errorf("invalid log level provided in config: %v", err)
	}
	return nil
}

// ListenAddress returns the host:port the grpc server listens on.
func (conf *ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%s", conf.Address, conf.Port)
}

// LoadFromFile loads the config from the file. It assumes that config already has the defaults.
// In the case of an error, it leaves the config untouched.
func (conf *ServerConfig) LoadFromFile(path string) error {
	log.Info(fmt.Sprintf("icecaneidb::config::LoadFromFile; loading config from file %s", path))
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.Error(fmt.Sprintf("icecaneidb::config::LoadFromFile; error reading config from file %s, error %s", path, err))
		return err
	}
	fconf := ServerConfig{}
	err = yaml.Unmarshal(data, &fconf)
	if err != nil {
		log.Error(fmt.Sprintf("icecaneidb::config::LoadFromFile; error unmarshalling config from file %s, error %s", path, err))
		return err
	}

	log.WithFields(log.Fields{"config": fconf}).Debug("icecaneidb::config::LoadFromFile; read contents from the file")

	// populate fields
	if fconf.Name != "" {
		conf.Name = fconf.Name
	}
	if fconf.Address != "" {
		conf.Address = fconf.Address
	}
	if fconf.Port != "" {
		conf.Port = fconf.Port
	}
	if fconf.MetricsAddress != "" {
		conf.MetricsAddress = fconf.MetricsAddress
	}
	if fconf.LogLevel != "" {
		conf.LogLevel = fconf.LogLevel
	}
	return nil
}
