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

// Package hwaddr picks the canonical hardware address of a machine out of the
// addresses found on its network interfaces.
//
// The choice only depends on the set of candidates, never on the order in
// which the interfaces were enumerated, so every boot of the same machine
// selects the same address. The default ranking is:
//   - universally administered addresses before locally administered ones,
//   - interfaces named after the physical-interface convention (eth*)
//     before any other interface,
//   - numerically lower addresses first.
//
// Older deployments applied only a subset of these rules; they are still
// available through Criteria.
package hwaddr
