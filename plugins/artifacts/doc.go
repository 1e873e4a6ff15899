// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package artifacts renders the configuration files consumed by the rest of
// the node bootstrap (systemd-networkd units and environment option files)
// and writes them into the target directory.
//
// Rendering and writing are separate steps: all files are rendered in memory
// first, so that a failure leaves no partial output behind.
//
// Importing the package switches gopkg.in/ini.v1 to compact output
// (ini.PrettyFormat and ini.PrettySection set to false) for the whole
// process: the option files are sourced by shells and systemd and need
// plain KEY=value lines. Other ini.v1 writers in the same binary get the
// same formatting.
package artifacts
